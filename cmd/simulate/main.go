package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/neuro-rehab-portal/internal/api"
	"github.com/hackgods/neuro-rehab-portal/internal/logger"
	"github.com/hackgods/neuro-rehab-portal/internal/patient"
)

type SimConfig struct {
	APIBaseURL   string
	Patients     int
	Messages     int
	PollInterval time.Duration
	StepTimeout  time.Duration
	Seed         uint64
}

type OperationMetrics struct {
	Total     int
	Success   int
	Rejected  int
	Error     int
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	om.mu.Lock()
	defer om.mu.Unlock()

	om.Total++
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		om.Error++
	case status >= http.StatusBadRequest:
		om.Rejected++
	default:
		om.Success++
	}
	om.Latencies = append(om.Latencies, latency)
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type Simulator struct {
	config  SimConfig
	client  *resty.Client
	faker   *gofakeit.Faker
	log     *zap.Logger
	metrics map[string]*OperationMetrics
	order   []string

	patients  []api.IdentityResponse
	completed map[string]int
	fallbacks int
	confirmed int
}

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Options{
		Level:   getEnv("LOG_LEVEL", "info"),
		Format:  getEnv("LOG_FORMAT", "console"),
		Service: "rehab-simulate",
	})
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.String("api", cfg.APIBaseURL),
		zap.Int("patients", cfg.Patients),
		zap.Int("messages", cfg.Messages),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := &Simulator{
		config: cfg,
		client: resty.New().
			SetBaseURL(cfg.APIBaseURL).
			SetTimeout(cfg.StepTimeout).
			SetHeader("Content-Type", "application/json"),
		faker:     gofakeit.New(cfg.Seed),
		log:       log,
		metrics:   map[string]*OperationMetrics{},
		completed: map[string]int{},
	}

	if err := sim.Run(ctx); err != nil {
		log.Error("simulation aborted", zap.Error(err))
	}
	sim.PrintReport()
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Patients:     getInt("SIM_PATIENTS", 5),
		Messages:     getInt("SIM_MESSAGES", 2),
		PollInterval: getDuration("SIM_POLL_INTERVAL", 250*time.Millisecond),
		StepTimeout:  getDuration("SIM_STEP_TIMEOUT", 30*time.Second),
		Seed:         uint64(getInt("SIM_SEED", 0)),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("SIM_POLL_INTERVAL must be > 0")
	}
	return nil
}

// Run walks the portal the way a clinic day would: each patient logs in,
// records one exercise, chats with the assistant and asks for an
// appointment. A clinician then reviews and confirms every request. The
// server holds a single session, so steps run one after another.
func (s *Simulator) Run(ctx context.Context) error {
	for i := 0; i < s.config.Patients; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.patientVisit(ctx); err != nil {
			s.log.Warn("patient visit failed", zap.Error(err))
		}
	}
	return s.clinicianReview(ctx)
}

func (s *Simulator) patientVisit(ctx context.Context) error {
	var sess api.SessionResponse
	if _, err := s.call(ctx, "login", http.MethodPost, "/session/login",
		api.LoginRequest{Name: s.faker.Name(), Role: "patient"}, &sess); err != nil {
		return err
	}
	if sess.Identity == nil {
		return fmt.Errorf("login returned no identity")
	}
	s.patients = append(s.patients, *sess.Identity)
	defer func() {
		_, _ = s.call(ctx, "logout", http.MethodPost, "/session/logout", nil, nil)
	}()

	if err := s.recordExercise(ctx, sess.Identity.ID); err != nil {
		s.log.Warn("capture failed", zap.String("patient", sess.Identity.Name), zap.Error(err))
	}

	for i := 0; i < s.config.Messages; i++ {
		var tr api.TranscriptResponse
		if _, err := s.call(ctx, "chat", http.MethodPost, "/patient/chat",
			api.ChatRequest{Text: s.faker.Question()}, &tr); err != nil {
			return err
		}
		if n := len(tr.Messages); n > 0 && tr.Messages[n-1].Text == patient.FallbackReply {
			s.fallbacks++
		}
	}

	_, err := s.call(ctx, "request_appointment", http.MethodPost, "/patient/appointments", nil, nil)
	return err
}

func (s *Simulator) recordExercise(ctx context.Context, patientID string) error {
	status, err := s.call(ctx, "open_lens", http.MethodPost, "/patient/lens", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("open lens: status %d", status)
	}

	deadline := time.Now().Add(s.config.StepTimeout)
	for {
		var snap api.CaptureResponse
		if _, err := s.call(ctx, "capture_status", http.MethodGet, "/patient/capture", nil, &snap); err != nil {
			return err
		}
		if snap.Progress >= 100 {
			break
		}
		if time.Now().After(deadline) {
			_, _ = s.call(ctx, "cancel_capture", http.MethodPost, "/patient/capture/cancel", nil, nil)
			return fmt.Errorf("capture did not reach full progress in %s", s.config.StepTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.config.PollInterval):
		}
	}

	var list api.ChecklistResponse
	if _, err := s.call(ctx, "finish_capture", http.MethodPost, "/patient/capture/finish", nil, &list); err != nil {
		return err
	}
	s.completed[patientID] = list.CompletionPercent
	return nil
}

func (s *Simulator) clinicianReview(ctx context.Context) error {
	if _, err := s.call(ctx, "login", http.MethodPost, "/session/login",
		api.LoginRequest{Name: "Dr. " + s.faker.LastName(), Role: "clinician"}, nil); err != nil {
		return err
	}
	defer func() {
		_, _ = s.call(ctx, "logout", http.MethodPost, "/session/logout", nil, nil)
	}()

	var overview api.OverviewResponse
	if _, err := s.call(ctx, "overview", http.MethodGet, "/clinician/overview", nil, &overview); err != nil {
		return err
	}
	s.log.Info("clinician overview",
		zap.Int("active_patients", overview.ActivePatients),
		zap.Int("pending_appointments", overview.PendingAppointments),
	)

	var appts []api.AppointmentResponse
	if _, err := s.call(ctx, "list_appointments", http.MethodGet, "/clinician/appointments", nil, &appts); err != nil {
		return err
	}
	for _, a := range appts {
		if a.Status != "pending" {
			continue
		}
		status, err := s.call(ctx, "confirm", http.MethodPost, "/clinician/appointments/"+strconv.Itoa(a.Seq)+"/confirm", nil, nil)
		if err == nil && status == http.StatusOK {
			s.confirmed++
		}
	}

	if len(s.patients) > 0 {
		pick := s.patients[s.faker.Number(0, len(s.patients)-1)]
		_, _ = s.call(ctx, "select_patient", http.MethodPost, "/clinician/patients/"+pick.ID+"/select", nil, nil)
	}
	return nil
}

// call issues one request and records it under op. A non-2xx status is not
// an error; callers inspect it.
func (s *Simulator) call(ctx context.Context, op, method, path string, body, out any) (int, error) {
	m, ok := s.metrics[op]
	if !ok {
		m = &OperationMetrics{}
		s.metrics[op] = m
		s.order = append(s.order, op)
	}

	req := s.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	req.SetError(&api.ErrorResponse{})

	start := time.Now()
	resp, err := req.Execute(method, path)
	latency := time.Since(start)
	if err != nil {
		m.Record(latency, 0, err)
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}

	m.Record(latency, resp.StatusCode(), nil)
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*api.ErrorResponse); ok {
			s.log.Debug("request rejected", zap.String("op", op), zap.Int("status", resp.StatusCode()), zap.String("error", apiErr.Error))
		}
	}
	return resp.StatusCode(), nil
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== Simulation Report ===")
	fmt.Printf("%-20s %6s %8s %9s %6s %10s %10s %10s\n", "operation", "total", "success", "rejected", "error", "avg", "p50", "p95")
	for _, op := range s.order {
		m := s.metrics[op]
		avg, p50, p95 := m.Stats()
		fmt.Printf("%-20s %6d %8d %9d %6d %10s %10s %10s\n",
			op, m.Total, m.Success, m.Rejected, m.Error,
			avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	}

	fmt.Println()
	fmt.Printf("patients visited:       %d\n", len(s.patients))
	for _, p := range s.patients {
		fmt.Printf("  %-28s %s  completion=%d%%\n", p.Name, p.ID, s.completed[p.ID])
	}
	fmt.Printf("assistant fallbacks:    %d\n", s.fallbacks)
	fmt.Printf("appointments confirmed: %d\n", s.confirmed)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
