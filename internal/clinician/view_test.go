package clinician

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

type stubSession struct {
	roster []rehab.PatientRecord
	appts  []rehab.AppointmentRequest
}

func (s *stubSession) Roster() []rehab.PatientRecord            { return s.roster }
func (s *stubSession) Appointments() []rehab.AppointmentRequest { return s.appts }

func newView(s *stubSession) *View {
	return NewView(rehab.Identity{Name: "Dr. Lee", Role: rehab.RoleClinician, ID: "DOC00001"}, s)
}

func TestView_DefaultsToDashboard(t *testing.T) {
	v := newView(&stubSession{})
	assert.Equal(t, SectionDashboard, v.Section())
	_, ok := v.SelectedPatient()
	assert.False(t, ok)
}

func TestView_SelectPatientSwitchesToAnalytics(t *testing.T) {
	s := &stubSession{roster: []rehab.PatientRecord{{Name: "Robert Smith", ID: "RS000001"}}}
	v := newView(s)

	v.SelectPatient("RS000001")
	assert.Equal(t, SectionAnalytics, v.Section())

	p, ok := v.SelectedPatient()
	require.True(t, ok)
	assert.Equal(t, "Robert Smith", p.Name)

	v.ClearSelection()
	assert.Equal(t, SectionAnalytics, v.Section())
	_, ok = v.SelectedPatient()
	assert.False(t, ok)
}

func TestView_UnknownSelectionFallsBack(t *testing.T) {
	v := newView(&stubSession{})
	v.SelectPatient("missing")
	_, ok := v.SelectedPatient()
	assert.False(t, ok)
}

func TestView_NavigateClearsSelection(t *testing.T) {
	s := &stubSession{roster: []rehab.PatientRecord{{Name: "Ann", ID: "A"}}}
	v := newView(s)
	v.SelectPatient("A")

	require.NoError(t, v.Navigate(SectionAppointments))
	assert.Equal(t, SectionAppointments, v.Section())
	_, ok := v.SelectedPatient()
	assert.False(t, ok)

	assert.ErrorIs(t, v.Navigate("billing"), ErrUnknownSection)
	assert.Equal(t, SectionAppointments, v.Section())
}

func TestView_OverviewUsesPlaceholders(t *testing.T) {
	s := &stubSession{
		roster: []rehab.PatientRecord{{Name: "Ann", ID: "A"}, {Name: "Bob", ID: "B"}},
		appts: []rehab.AppointmentRequest{
			{Seq: 1, Status: rehab.StatusPending},
			{Seq: 2, Status: rehab.StatusConfirmed},
			{Seq: 3, Status: rehab.StatusPending},
		},
	}
	o := newView(s).Overview()

	assert.Equal(t, 2, o.ActivePatients)
	assert.Equal(t, 2, o.PendingAppointments)
	require.Len(t, o.Stats, 4)
	assert.Equal(t, "78.4%", o.Stats[0].Value)
	assert.Equal(t, "Stable", o.Stats[2].Value)

	o.Stats[0].Value = "changed"
	assert.Equal(t, "78.4%", newView(s).Overview().Stats[0].Value)
}
