package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/neuro-rehab-portal/internal/device"
	"github.com/hackgods/neuro-rehab-portal/internal/events"
	"github.com/hackgods/neuro-rehab-portal/internal/patient"
	"github.com/hackgods/neuro-rehab-portal/internal/session"
)

type cannedGenerator struct {
	reply string
	err   error
}

func (g cannedGenerator) Generate(context.Context, string, string) (string, error) {
	return g.reply, g.err
}

type testServer struct {
	handler http.Handler
	camera  *device.SimulatedCamera
	ctrl    *session.Controller
}

func newTestServer(t *testing.T, gen cannedGenerator) *testServer {
	t.Helper()
	cam := device.NewSimulatedCamera(true, 0)
	ctrl := session.NewController(
		patient.Deps{Camera: cam, Assistant: gen},
		patient.Options{Capture: patient.CaptureOptions{Tick: time.Millisecond, Step: 10}},
		events.NewRecorder(zap.NewNop()),
		zap.NewNop(),
	)
	t.Cleanup(func() { ctrl.Logout(context.Background()) })

	return &testServer{
		handler: NewRouter(RouterConfig{Controller: ctrl, Env: "test", Version: "dev"}),
		camera:  cam,
		ctrl:    ctrl,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// patientCapture reads the capture state without test assertions so it can
// run inside require.Eventually.
func patientCapture(s *testServer) (CaptureResponse, error) {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patient/capture", nil))
	var snap CaptureResponse
	err := json.Unmarshal(rec.Body.Bytes(), &snap)
	return snap, err
}

func (s *testServer) login(t *testing.T, name, role string) SessionResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/session/login", LoginRequest{Name: name, Role: role})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[SessionResponse](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, cannedGenerator{})

	rec := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Empty(t, ready.Dependencies)
}

func TestReadiness_DegradedWhenSinkDown(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"postgres": PingerFunc(func(context.Context) error { return nil }),
		"redis":    PingerFunc(func(context.Context) error { return errors.New("refused") }),
		"unused":   nil,
	}, "test", "dev")

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "down"}, ready.Dependencies)
}

func TestSession_LoginAndLogout(t *testing.T) {
	s := newTestServer(t, cannedGenerator{})

	rec := s.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "landing", decode[SessionResponse](t, rec).View)

	resp := s.login(t, "Dr. Lee", "doctor")
	assert.Equal(t, "clinician", resp.View)
	require.NotNil(t, resp.Identity)
	assert.Len(t, resp.Identity.ID, 8)

	rec = s.do(t, http.MethodPost, "/session/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "landing", decode[SessionResponse](t, rec).View)
}

func TestSession_InvalidLogin(t *testing.T) {
	s := newTestServer(t, cannedGenerator{})

	rec := s.do(t, http.MethodPost, "/session/login", LoginRequest{Name: "  ", Role: "patient"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_login", decode[ErrorResponse](t, rec).Error)

	req := httptest.NewRequest(http.MethodPost, "/session/login", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	s.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t, cannedGenerator{})

	rec := s.do(t, http.MethodGet, "/patient/tasks", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "no_session", decode[ErrorResponse](t, rec).Error)

	s.login(t, "Dr. Lee", "clinician")
	rec = s.do(t, http.MethodGet, "/patient/tasks", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "wrong_role", decode[ErrorResponse](t, rec).Error)

	s.login(t, "Ann", "patient")
	rec = s.do(t, http.MethodGet, "/clinician/overview", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPatient_CaptureFlow(t *testing.T) {
	s := newTestServer(t, cannedGenerator{})
	s.login(t, "Robert Smith", "patient")

	rec := s.do(t, http.MethodPost, "/patient/tasks/1/capture", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/patient/tasks/2/capture", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "capture_in_progress", decode[ErrorResponse](t, rec).Error)

	require.Eventually(t, func() bool {
		snap, err := patientCapture(s)
		return err == nil && snap.Progress == 100
	}, 2*time.Second, 5*time.Millisecond)

	rec = s.do(t, http.MethodPost, "/patient/capture/finish", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[ChecklistResponse](t, rec)
	assert.Equal(t, 33, list.CompletionPercent)
	assert.True(t, list.Tasks[0].Completed)

	rec = s.do(t, http.MethodPost, "/patient/tasks/1/capture", nil)
	assert.Equal(t, "task_completed", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/patient/tasks/9/capture", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/patient/tasks/abc/capture", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatient_LensCancelAndFinishErrors(t *testing.T) {
	s := newTestServer(t, cannedGenerator{})
	s.login(t, "Ann", "patient")

	rec := s.do(t, http.MethodPost, "/patient/capture/finish", nil)
	assert.Equal(t, "no_active_capture", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/patient/lens", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, decode[CaptureResponse](t, rec).TaskID)

	rec = s.do(t, http.MethodPost, "/patient/capture/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decode[CaptureResponse](t, rec).State)

	list := decode[ChecklistResponse](t, s.do(t, http.MethodGet, "/patient/tasks", nil))
	assert.Equal(t, 0, list.CompletionPercent)
}

func TestPatient_CameraDenied(t *testing.T) {
	s := newTestServer(t, cannedGenerator{})
	s.camera.SetAvailable(false)
	s.login(t, "Ann", "patient")

	rec := s.do(t, http.MethodPost, "/patient/lens", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "camera_denied", resp.Error)
	assert.Equal(t, patient.DeviceDeniedNotice, resp.Details)

	snap := decode[CaptureResponse](t, s.do(t, http.MethodGet, "/patient/capture", nil))
	assert.Equal(t, "idle", snap.State)
}

func TestPatient_Chat(t *testing.T) {
	s := newTestServer(t, cannedGenerator{reply: "Nice work today."})
	s.login(t, "Ann", "patient")

	rec := s.do(t, http.MethodGet, "/patient/chat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[TranscriptResponse](t, rec).Messages, 1)

	rec = s.do(t, http.MethodPost, "/patient/chat", ChatRequest{Text: "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/patient/chat", ChatRequest{Text: "My arm feels stiff"})
	require.Equal(t, http.StatusOK, rec.Code)
	tr := decode[TranscriptResponse](t, rec)
	require.Len(t, tr.Messages, 3)
	assert.Equal(t, "user", tr.Messages[1].Role)
	assert.Equal(t, "Nice work today.", tr.Messages[2].Text)
	assert.False(t, tr.Composing)
}

func TestPatient_ChatFallback(t *testing.T) {
	s := newTestServer(t, cannedGenerator{err: errors.New("boom")})
	s.login(t, "Ann", "patient")

	tr := decode[TranscriptResponse](t, s.do(t, http.MethodPost, "/patient/chat", ChatRequest{Text: "hello"}))
	require.Len(t, tr.Messages, 3)
	assert.Equal(t, patient.FallbackReply, tr.Messages[2].Text)
}

func TestAppointments_RequestListConfirm(t *testing.T) {
	s := newTestServer(t, cannedGenerator{})
	s.login(t, "Ann", "patient")

	rec := s.do(t, http.MethodPost, "/patient/appointments", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[AppointmentSentResponse](t, rec)
	assert.Equal(t, patient.AppointmentSentNotice, sent.Notice)
	assert.Equal(t, "pending", sent.Appointment.Status)
	s.do(t, http.MethodPost, "/patient/appointments", nil)

	s.login(t, "Dr. Lee", "clinician")

	overview := decode[OverviewResponse](t, s.do(t, http.MethodGet, "/clinician/overview", nil))
	assert.Equal(t, 1, overview.ActivePatients)
	assert.Equal(t, 2, overview.PendingAppointments)
	assert.Equal(t, "dashboard", overview.Section)
	assert.Len(t, overview.Stats, 4)

	appts := decode[[]AppointmentResponse](t, s.do(t, http.MethodGet, "/clinician/appointments", nil))
	require.Len(t, appts, 2)
	assert.Equal(t, "Ann", appts[0].PatientName)

	rec = s.do(t, http.MethodPost, "/clinician/appointments/1/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/clinician/appointments/1/confirm", nil)
	assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/clinician/appointments/42/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClinician_NavigationAndSelection(t *testing.T) {
	s := newTestServer(t, cannedGenerator{})
	ann := s.login(t, "Ann", "patient")
	s.login(t, "Dr. Lee", "clinician")

	rec := s.do(t, http.MethodPost, "/clinician/section", SectionRequest{Section: "billing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_section", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/clinician/section", SectionRequest{Section: "patients"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "patients", decode[SelectionResponse](t, rec).Section)

	patients := decode[[]PatientResponse](t, s.do(t, http.MethodGet, "/clinician/patients", nil))
	require.Len(t, patients, 1)

	rec = s.do(t, http.MethodPost, "/clinician/patients/"+ann.Identity.ID+"/select", nil)
	sel := decode[SelectionResponse](t, rec)
	require.True(t, sel.Selected)
	assert.Equal(t, "Ann", sel.Patient.Name)

	rec = s.do(t, http.MethodDelete, "/clinician/selection", nil)
	assert.False(t, decode[SelectionResponse](t, rec).Selected)

	rec = s.do(t, http.MethodGet, "/clinician/selection", nil)
	assert.False(t, decode[SelectionResponse](t, rec).Selected)
}
