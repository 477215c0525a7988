package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventSessionLogin         = "SESSION_LOGIN"
	EventSessionLogout        = "SESSION_LOGOUT"
	EventPatientRegistered    = "PATIENT_REGISTERED"
	EventAppointmentRequested = "APPOINTMENT_REQUESTED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventCaptureStarted       = "CAPTURE_STARTED"
	EventCaptureCompleted     = "CAPTURE_COMPLETED"
	EventCaptureCancelled     = "CAPTURE_CANCELLED"
	EventCaptureDenied        = "CAPTURE_DENIED"
	EventTaskCompleted        = "TASK_COMPLETED"
	EventChatFallback         = "CHAT_FALLBACK"
)

// Event is one audit record. Sinks only ever append events; nothing reads
// them back into the session.
type Event struct {
	ID        uuid.UUID
	Type      string
	Subject   string
	Payload   []byte
	CreatedAt time.Time
}

// Sink receives audit events.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// DefaultWriteTimeout bounds a single sink write.
const DefaultWriteTimeout = 2 * time.Second

// Recorder turns domain happenings into events and fans them out to sinks.
// Sink failures and stalls are logged and swallowed: each write gets its own
// deadline, detached from the caller's cancellation.
type Recorder struct {
	sinks        []Sink
	logger       *zap.Logger
	writeTimeout time.Duration
}

func NewRecorder(logger *zap.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{sinks: sinks, logger: logger, writeTimeout: DefaultWriteTimeout}
}

// WithWriteTimeout sets the per-sink write deadline. Non-positive values keep
// the default.
func (r *Recorder) WithWriteTimeout(d time.Duration) *Recorder {
	if d > 0 {
		r.writeTimeout = d
	}
	return r
}

// Record is safe to call on a nil Recorder.
func (r *Recorder) Record(ctx context.Context, eventType, subject string, payload map[string]any) {
	if r == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("failed to marshal event payload",
			zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	ev := Event{
		ID:        uuid.New(),
		Type:      eventType,
		Subject:   subject,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}

	r.logger.Debug("session event",
		zap.String("event_type", eventType),
		zap.String("subject", subject),
		zap.ByteString("payload", data))

	for _, s := range r.sinks {
		if err := r.write(ctx, s, ev); err != nil {
			r.logger.Warn("failed to write event",
				zap.String("event_type", eventType),
				zap.String("event_id", ev.ID.String()),
				zap.Error(err))
		}
	}
}

func (r *Recorder) write(ctx context.Context, s Sink, ev Event) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()
	return s.Write(writeCtx, ev)
}

// SinkCount reports how many sinks are attached.
func (r *Recorder) SinkCount() int {
	if r == nil {
		return 0
	}
	return len(r.sinks)
}
