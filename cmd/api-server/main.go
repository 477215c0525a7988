package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/neuro-rehab-portal/internal/api"
	"github.com/hackgods/neuro-rehab-portal/internal/assistant"
	"github.com/hackgods/neuro-rehab-portal/internal/config"
	"github.com/hackgods/neuro-rehab-portal/internal/db"
	"github.com/hackgods/neuro-rehab-portal/internal/device"
	"github.com/hackgods/neuro-rehab-portal/internal/events"
	"github.com/hackgods/neuro-rehab-portal/internal/logger"
	"github.com/hackgods/neuro-rehab-portal/internal/patient"
	redisclient "github.com/hackgods/neuro-rehab-portal/internal/redis"
	"github.com/hackgods/neuro-rehab-portal/internal/session"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Service: "rehab-api",
	})
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sinks []events.Sink
	health := map[string]api.Pinger{}

	// Postgres audit sink (optional)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, pgSink, err := db.OpenAuditStore(pgCtx, db.AuditOptions{
			DSN:          cfg.PostgresDSN,
			WriteTimeout: cfg.AuditTimeout,
		})
		cancelPg()
		if err != nil {
			log.Warn("postgres audit sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, pgSink)
			health["postgres"] = pgPool
			defer pgPool.Close()
			log.Info("connected to Postgres")
		}
	}

	// Redis audit stream (optional)
	if cfg.RedisAddr != "" {
		rdb, redisSink, err := redisclient.OpenAuditStream(rootCtx, redisclient.AuditOptions{
			Addr:         cfg.RedisAddr,
			Username:     cfg.RedisUsername,
			Password:     cfg.RedisPassword,
			Stream:       cfg.RedisStream,
			MaxLen:       cfg.RedisMaxLen,
			WriteTimeout: cfg.AuditTimeout,
		})
		if err != nil {
			log.Warn("redis audit sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, redisSink)
			health["redis"] = pingRedis(rdb)
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Warn("error closing redis", zap.Error(err))
				}
			}()
			log.Info("connected to Redis", zap.String("stream", cfg.RedisStream))
		}
	}

	recorder := events.NewRecorder(log, sinks...).WithWriteTimeout(cfg.AuditTimeout)
	log.Info("audit recorder ready",
		zap.Int("sinks", recorder.SinkCount()),
		zap.Duration("write_timeout", cfg.AuditTimeout),
	)

	if cfg.AssistantAPIKey == "" {
		log.Warn("assistant api key not set, chat replies will use the fallback")
	}
	gemini := assistant.NewGeminiClient(assistant.Options{
		BaseURL: cfg.AssistantBaseURL,
		Model:   cfg.AssistantModel,
		APIKey:  cfg.AssistantAPIKey,
		Timeout: cfg.AssistantTimeout,
	}, log)

	ctrl := session.NewController(
		patient.Deps{
			Camera:    device.NewSimulatedCamera(cfg.CameraAvailable, 300*time.Millisecond),
			Assistant: gemini,
		},
		patient.Options{
			Capture:          patient.CaptureOptions{Tick: cfg.CaptureTick, Step: cfg.CaptureStep},
			AppointmentDelay: cfg.AppointmentDelay,
			AssistantTimeout: cfg.AssistantTimeout,
		},
		recorder,
		log,
	)

	srv := &http.Server{
		Addr: net.JoinHostPort("", cfg.HTTPPort),
		Handler: api.NewRouter(api.RouterConfig{
			Controller:  ctrl,
			Sinks:       health,
			Logger:      log,
			CORSOrigins: cfg.CORSOrigins,
			Env:         cfg.Env,
			Version:     version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		// Long enough for an assistant reply plus its audit writes.
		WriteTimeout: cfg.AssistantTimeout + 2*cfg.AuditTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}

	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	// Releases the camera and stops any running capture.
	ctrl.Logout(shutdownCtx)
}

func pingRedis(rdb *redis.Client) api.Pinger {
	return api.PingerFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}
