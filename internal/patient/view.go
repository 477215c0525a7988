package patient

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/neuro-rehab-portal/internal/assistant"
	"github.com/hackgods/neuro-rehab-portal/internal/events"
	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

// AppointmentSentNotice confirms a submitted appointment request.
const AppointmentSentNotice = "Appointment request sent to your doctor!"

var ErrRequestInFlight = errors.New("an appointment request is already being sent")

// AppointmentRequester hands a request to the session that owns the
// appointment list and returns it as stored.
type AppointmentRequester func(ctx context.Context, req rehab.AppointmentRequest) rehab.AppointmentRequest

type Deps struct {
	Camera    Camera
	Assistant assistant.Generator
	Recorder  *events.Recorder
	Logger    *zap.Logger
}

type Options struct {
	Capture          CaptureOptions
	AppointmentDelay time.Duration
	AssistantTimeout time.Duration
}

// View holds the ephemeral state of one patient visit. It is built on login
// and closed on logout.
type View struct {
	identity rehab.Identity
	tasks    *Checklist
	capture  *Capture
	chat     *Conversation
	request  AppointmentRequester
	delay    time.Duration
	logger   *zap.Logger

	sending atomic.Bool
}

func NewView(identity rehab.Identity, deps Deps, opts Options, request AppointmentRequester) *View {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("patient_id", identity.ID))

	tasks := NewChecklist()
	return &View{
		identity: identity,
		tasks:    tasks,
		capture:  NewCapture(deps.Camera, tasks, opts.Capture, identity.ID, deps.Recorder, logger),
		chat:     NewConversation(deps.Assistant, identity.Name, identity.ID, opts.AssistantTimeout, deps.Recorder, logger),
		request:  request,
		delay:    opts.AppointmentDelay,
		logger:   logger,
	}
}

func (v *View) Identity() rehab.Identity { return v.identity }

func (v *View) Checklist() *Checklist { return v.tasks }

func (v *View) Capture() *Capture { return v.capture }

func (v *View) Conversation() *Conversation { return v.chat }

// StartNextCapture opens the lens on the first task still to do.
func (v *View) StartNextCapture(ctx context.Context) (CaptureSnapshot, error) {
	task, ok := v.tasks.NextOpen()
	if !ok {
		return CaptureSnapshot{}, ErrTaskCompleted
	}
	return v.capture.Start(ctx, task.ID)
}

// RequestAppointment simulates submission latency, then files a pending
// request for this patient.
func (v *View) RequestAppointment(ctx context.Context) (rehab.AppointmentRequest, error) {
	if !v.sending.CompareAndSwap(false, true) {
		return rehab.AppointmentRequest{}, ErrRequestInFlight
	}
	defer v.sending.Store(false)

	if v.delay > 0 {
		t := time.NewTimer(v.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return rehab.AppointmentRequest{}, ctx.Err()
		case <-t.C:
		}
	}

	stored := v.request(ctx, rehab.AppointmentRequest{
		PatientName: v.identity.Name,
		PatientID:   v.identity.ID,
		RequestedAt: time.Now(),
		Status:      rehab.StatusPending,
	})
	v.logger.Info("appointment requested", zap.Int("seq", stored.Seq))
	return stored, nil
}

// Sending reports whether an appointment request is in flight.
func (v *View) Sending() bool { return v.sending.Load() }

// Close releases the camera and stops any running capture.
func (v *View) Close() {
	v.capture.Close()
}
