package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/neuro-rehab-portal/internal/clinician"
	"github.com/hackgods/neuro-rehab-portal/internal/events"
	"github.com/hackgods/neuro-rehab-portal/internal/patient"
	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

var (
	ErrNoSession               = errors.New("no active session")
	ErrWrongRole               = errors.New("active session has a different role")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// Controller is the single writer of session state: the active identity, the
// roster of patients seen since start-up and the appointment requests they
// raised. Roster and appointments outlive logins.
type Controller struct {
	patientDeps patient.Deps
	patientOpts patient.Options
	rec         *events.Recorder
	logger      *zap.Logger

	mu           sync.RWMutex
	current      View
	roster       []rehab.PatientRecord
	appointments []rehab.AppointmentRequest
}

func NewController(patientDeps patient.Deps, patientOpts patient.Options, rec *events.Recorder, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if patientDeps.Recorder == nil {
		patientDeps.Recorder = rec
	}
	if patientDeps.Logger == nil {
		patientDeps.Logger = logger
	}
	return &Controller{
		patientDeps: patientDeps,
		patientOpts: patientOpts,
		rec:         rec,
		logger:      logger,
		current:     NoSession{},
	}
}

// Login makes name the active identity. A blank name or an unusable role
// does nothing and reports false. Whatever view was active is torn down and
// a fresh one is mounted for the new role.
func (c *Controller) Login(ctx context.Context, name string, role rehab.Role, id string) (rehab.Identity, bool) {
	name = strings.TrimSpace(name)
	id = strings.TrimSpace(id)
	if name == "" || (role != rehab.RoleClinician && role != rehab.RolePatient) {
		return rehab.Identity{}, false
	}

	c.mu.Lock()
	registered := false
	if role == rehab.RolePatient {
		if existing, ok := c.findPatientLocked(name); ok {
			if id == "" {
				id = existing.ID
			}
		} else {
			if id == "" {
				id = rehab.NewIdentifier()
			}
			c.roster = append(c.roster, rehab.PatientRecord{Name: name, ID: id, FirstSeenAt: time.Now()})
			registered = true
		}
	}
	if id == "" {
		id = rehab.NewIdentifier()
	}

	identity := rehab.Identity{Name: name, Role: role, ID: id}
	previous := c.current
	switch role {
	case rehab.RoleClinician:
		c.current = ClinicianSession{Identity: identity, View: clinician.NewView(identity, c)}
	case rehab.RolePatient:
		c.current = PatientSession{
			Identity: identity,
			View:     patient.NewView(identity, c.patientDeps, c.patientOpts, c.RequestAppointment),
		}
	}
	c.mu.Unlock()

	closeView(previous)

	c.logger.Info("login", zap.String("name", name), zap.String("role", string(role)), zap.String("id", id))
	c.rec.Record(ctx, events.EventSessionLogin, id, map[string]any{"name": name, "role": string(role)})
	if registered {
		c.rec.Record(ctx, events.EventPatientRegistered, id, map[string]any{"name": name})
	}
	return identity, true
}

// Logout clears the active identity. Roster and appointments are kept.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	previous := c.current
	c.current = NoSession{}
	c.mu.Unlock()

	identity, ok := identityOf(previous)
	closeView(previous)
	if !ok {
		return
	}

	c.logger.Info("logout", zap.String("name", identity.Name), zap.String("id", identity.ID))
	c.rec.Record(ctx, events.EventSessionLogout, identity.ID, map[string]any{"role": string(identity.Role)})
}

// RequestAppointment appends a pending request. Repeated requests from the
// same patient are all kept.
func (c *Controller) RequestAppointment(ctx context.Context, req rehab.AppointmentRequest) rehab.AppointmentRequest {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}
	req.Status = rehab.StatusPending

	c.mu.Lock()
	req.Seq = len(c.appointments) + 1
	c.appointments = append(c.appointments, req)
	c.mu.Unlock()

	c.rec.Record(ctx, events.EventAppointmentRequested, req.PatientID, map[string]any{
		"seq":          req.Seq,
		"patient_name": req.PatientName,
		"requested_at": req.RequestedAt,
	})
	return req
}

// ConfirmAppointment moves a pending request to confirmed.
func (c *Controller) ConfirmAppointment(ctx context.Context, seq int) (rehab.AppointmentRequest, error) {
	c.mu.Lock()
	if seq < 1 || seq > len(c.appointments) {
		c.mu.Unlock()
		return rehab.AppointmentRequest{}, ErrAppointmentNotFound
	}
	appt := &c.appointments[seq-1]
	if appt.Status != rehab.StatusPending {
		c.mu.Unlock()
		return rehab.AppointmentRequest{}, ErrInvalidStatusTransition
	}
	appt.Status = rehab.StatusConfirmed
	confirmed := *appt
	c.mu.Unlock()

	c.rec.Record(ctx, events.EventAppointmentConfirmed, confirmed.PatientID, map[string]any{"seq": seq})
	return confirmed, nil
}

func (c *Controller) Roster() []rehab.PatientRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]rehab.PatientRecord, len(c.roster))
	copy(out, c.roster)
	return out
}

func (c *Controller) Appointments() []rehab.AppointmentRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]rehab.AppointmentRequest, len(c.appointments))
	copy(out, c.appointments)
	return out
}

func (c *Controller) Current() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Identity returns the active identity, if any.
func (c *Controller) Identity() (rehab.Identity, bool) {
	return identityOf(c.Current())
}

// Clinician returns the clinician view when a clinician is logged in.
func (c *Controller) Clinician() (*clinician.View, error) {
	switch cur := c.Current().(type) {
	case ClinicianSession:
		return cur.View, nil
	case PatientSession:
		return nil, ErrWrongRole
	default:
		return nil, ErrNoSession
	}
}

// Patient returns the patient view when a patient is logged in.
func (c *Controller) Patient() (*patient.View, error) {
	switch cur := c.Current().(type) {
	case PatientSession:
		return cur.View, nil
	case ClinicianSession:
		return nil, ErrWrongRole
	default:
		return nil, ErrNoSession
	}
}

func (c *Controller) findPatientLocked(name string) (rehab.PatientRecord, bool) {
	for _, p := range c.roster {
		if p.Name == name {
			return p, true
		}
	}
	return rehab.PatientRecord{}, false
}

func identityOf(v View) (rehab.Identity, bool) {
	switch cur := v.(type) {
	case ClinicianSession:
		return cur.Identity, true
	case PatientSession:
		return cur.Identity, true
	default:
		return rehab.Identity{}, false
	}
}
