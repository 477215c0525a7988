package session

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/neuro-rehab-portal/internal/device"
	"github.com/hackgods/neuro-rehab-portal/internal/events"
	"github.com/hackgods/neuro-rehab-portal/internal/patient"
	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, string) (string, error) {
	return "", errors.New("network down")
}

type eventLog struct{ types []string }

func (l *eventLog) Write(_ context.Context, ev events.Event) error {
	l.types = append(l.types, ev.Type)
	return nil
}

func newController(t *testing.T) (*Controller, *device.SimulatedCamera, *eventLog) {
	t.Helper()
	cam := device.NewSimulatedCamera(true, 0)
	log := &eventLog{}
	c := NewController(
		patient.Deps{Camera: cam, Assistant: failingGenerator{}},
		patient.Options{Capture: patient.CaptureOptions{Tick: time.Millisecond, Step: 2}},
		events.NewRecorder(zap.NewNop(), log),
		zap.NewNop(),
	)
	t.Cleanup(func() { c.Logout(context.Background()) })
	return c, cam, log
}

var identifierPattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func TestLogin_GeneratesIdentifier(t *testing.T) {
	c, _, _ := newController(t)

	id, ok := c.Login(context.Background(), "Dr. Lee", rehab.RoleClinician, "")
	require.True(t, ok)
	assert.Regexp(t, identifierPattern, id.ID)
	assert.Empty(t, c.Roster())

	cur, ok := c.Current().(ClinicianSession)
	require.True(t, ok)
	assert.Equal(t, id, cur.Identity)
}

func TestLogin_BlankNameOrNoRoleDoesNothing(t *testing.T) {
	c, _, log := newController(t)

	_, ok := c.Login(context.Background(), "   ", rehab.RolePatient, "")
	assert.False(t, ok)
	_, ok = c.Login(context.Background(), "Ann", rehab.RoleNone, "")
	assert.False(t, ok)

	assert.IsType(t, NoSession{}, c.Current())
	assert.Empty(t, c.Roster())
	assert.Empty(t, log.types)
}

func TestLogin_RosterIsIdempotentByName(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()

	first, _ := c.Login(ctx, "Robert Smith", rehab.RolePatient, "")
	c.Logout(ctx)
	again, _ := c.Login(ctx, "Robert Smith", rehab.RolePatient, "")
	c.Login(ctx, "Ann Jones", rehab.RolePatient, "AJ000001")
	c.Login(ctx, "Robert Smith", rehab.RolePatient, "")

	roster := c.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, "Robert Smith", roster[0].Name)
	assert.Equal(t, first.ID, roster[0].ID)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "AJ000001", roster[1].ID)
}

func TestLogout_KeepsRosterAndAppointments(t *testing.T) {
	c, _, log := newController(t)
	ctx := context.Background()

	id, _ := c.Login(ctx, "Robert Smith", rehab.RolePatient, "")
	c.RequestAppointment(ctx, rehab.AppointmentRequest{PatientName: id.Name, PatientID: id.ID})
	c.Logout(ctx)

	assert.IsType(t, NoSession{}, c.Current())
	_, ok := c.Identity()
	assert.False(t, ok)
	assert.Len(t, c.Roster(), 1)
	assert.Len(t, c.Appointments(), 1)

	c.Login(ctx, "Dr. Lee", rehab.RoleClinician, "")
	view, err := c.Clinician()
	require.NoError(t, err)
	assert.Len(t, view.Patients(), 1)
	assert.Len(t, view.Appointments(), 1)

	assert.Equal(t, []string{
		events.EventSessionLogin,
		events.EventPatientRegistered,
		events.EventAppointmentRequested,
		events.EventSessionLogout,
		events.EventSessionLogin,
	}, log.types)
}

func TestRequestAppointment_KeepsSubmissionOrder(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()

	id, _ := c.Login(ctx, "Robert Smith", rehab.RolePatient, "")
	view, err := c.Patient()
	require.NoError(t, err)

	_, err = view.RequestAppointment(ctx)
	require.NoError(t, err)
	_, err = view.RequestAppointment(ctx)
	require.NoError(t, err)

	appts := c.Appointments()
	require.Len(t, appts, 2)
	for i, a := range appts {
		assert.Equal(t, i+1, a.Seq)
		assert.Equal(t, rehab.StatusPending, a.Status)
		assert.Equal(t, id.ID, a.PatientID)
	}
	assert.False(t, appts[1].RequestedAt.Before(appts[0].RequestedAt))
}

func TestConfirmAppointment(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()
	c.RequestAppointment(ctx, rehab.AppointmentRequest{PatientName: "Ann", PatientID: "A"})

	confirmed, err := c.ConfirmAppointment(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, rehab.StatusConfirmed, confirmed.Status)
	assert.Equal(t, rehab.StatusConfirmed, c.Appointments()[0].Status)

	_, err = c.ConfirmAppointment(ctx, 1)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	_, err = c.ConfirmAppointment(ctx, 7)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = c.ConfirmAppointment(ctx, 0)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestRoleAccessors(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()

	_, err := c.Patient()
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = c.Clinician()
	assert.ErrorIs(t, err, ErrNoSession)

	c.Login(ctx, "Ann", rehab.RolePatient, "")
	_, err = c.Clinician()
	assert.ErrorIs(t, err, ErrWrongRole)

	c.Login(ctx, "Dr. Lee", rehab.RoleClinician, "")
	_, err = c.Patient()
	assert.ErrorIs(t, err, ErrWrongRole)
}

func TestSwitchingIdentityReleasesPatientState(t *testing.T) {
	c, cam, _ := newController(t)
	ctx := context.Background()

	c.Login(ctx, "Ann", rehab.RolePatient, "")
	view, err := c.Patient()
	require.NoError(t, err)
	_, err = view.Capture().Start(ctx, 1)
	require.NoError(t, err)
	view.Conversation().Send(ctx, "hello")
	assert.Equal(t, 1, cam.OpenStreams())

	c.Login(ctx, "Ann", rehab.RolePatient, "")
	assert.Equal(t, 0, cam.OpenStreams())
	assert.Equal(t, patient.CaptureIdle, view.Capture().Snapshot().State)

	fresh, err := c.Patient()
	require.NoError(t, err)
	assert.NotSame(t, view, fresh)
	assert.Len(t, fresh.Conversation().Messages(), 1)
	assert.Equal(t, 0, fresh.Checklist().CompletionPercent())
}

func TestClinicianSelectionResetsOnRelogin(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()

	p, _ := c.Login(ctx, "Ann", rehab.RolePatient, "")
	c.Login(ctx, "Dr. Lee", rehab.RoleClinician, "")
	view, _ := c.Clinician()
	view.SelectPatient(p.ID)
	_, ok := view.SelectedPatient()
	require.True(t, ok)

	c.Logout(ctx)
	c.Login(ctx, "Dr. Lee", rehab.RoleClinician, "")
	view, _ = c.Clinician()
	_, ok = view.SelectedPatient()
	assert.False(t, ok)
}

// Login as "Robert Smith", run a capture on task 1 to full progress and
// finish it.
func TestScenario_RobertSmithCompletesFirstTask(t *testing.T) {
	c, cam, _ := newController(t)
	ctx := context.Background()

	c.Login(ctx, "Robert Smith", rehab.RolePatient, "")
	roster := c.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, "Robert Smith", roster[0].Name)

	view, err := c.Patient()
	require.NoError(t, err)
	_, err = view.Capture().Start(ctx, 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return view.Capture().Snapshot().Progress == 100
	}, 2*time.Second, time.Millisecond)

	_, err = view.Capture().Finish(ctx)
	require.NoError(t, err)

	tasks := view.Checklist().Tasks()
	assert.True(t, tasks[0].Completed)
	assert.False(t, tasks[1].Completed)
	assert.False(t, tasks[2].Completed)
	assert.Equal(t, 33, view.Checklist().CompletionPercent())
	assert.Equal(t, 0, cam.OpenStreams())
}

func TestScenario_AssistantFailureFallsBack(t *testing.T) {
	c, _, log := newController(t)
	ctx := context.Background()

	c.Login(ctx, "Robert Smith", rehab.RolePatient, "")
	view, _ := c.Patient()
	view.Conversation().Send(ctx, "How am I doing?")

	msgs := view.Conversation().Messages()
	assert.Equal(t, patient.FallbackReply, msgs[len(msgs)-1].Text)
	assert.False(t, view.Conversation().Composing())
	assert.Contains(t, log.types, events.EventChatFallback)
}

type stalledSink struct{}

func (stalledSink) Write(ctx context.Context, _ events.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestLogin_NotHeldByStalledAuditSink(t *testing.T) {
	c := NewController(
		patient.Deps{Camera: device.NewSimulatedCamera(true, 0), Assistant: failingGenerator{}},
		patient.Options{},
		events.NewRecorder(zap.NewNop(), stalledSink{}).WithWriteTimeout(20*time.Millisecond),
		zap.NewNop(),
	)
	t.Cleanup(func() { c.Logout(context.Background()) })

	done := make(chan rehab.Identity, 1)
	go func() {
		id, _ := c.Login(context.Background(), "Robert Smith", rehab.RolePatient, "")
		done <- id
	}()

	select {
	case id := <-done:
		assert.Equal(t, "Robert Smith", id.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("login blocked on the audit sink")
	}
	assert.Len(t, c.Roster(), 1)
}
