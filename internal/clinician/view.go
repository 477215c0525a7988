package clinician

import (
	"errors"
	"sync"

	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

type Section string

const (
	SectionDashboard    Section = "dashboard"
	SectionPatients     Section = "patients"
	SectionAppointments Section = "appointments"
	SectionAnalytics    Section = "analytics"
	SectionSettings     Section = "settings"
)

var Sections = []Section{SectionDashboard, SectionPatients, SectionAppointments, SectionAnalytics, SectionSettings}

var ErrUnknownSection = errors.New("unknown section")

// SessionReader is the read-only slice of session state the clinician sees.
type SessionReader interface {
	Roster() []rehab.PatientRecord
	Appointments() []rehab.AppointmentRequest
}

// Stat is a dashboard card. Figures are display placeholders and are not
// derived from patient data.
type Stat struct {
	Label string
	Value string
	Trend string
}

type Overview struct {
	ActivePatients      int
	PendingAppointments int
	Stats               []Stat
}

var placeholderStats = []Stat{
	{Label: "Patient Recovery", Value: "78.4%", Trend: "+12.1%"},
	{Label: "Adherence Rate", Value: "94%", Trend: "Optimal"},
	{Label: "Vitals Baseline", Value: "Stable"},
	{Label: "Critical Alerts", Value: "0", Trend: "Clear"},
}

// View keeps the clinician's navigation state. It owns nothing but the
// current section and selection.
type View struct {
	identity rehab.Identity
	session  SessionReader

	mu       sync.RWMutex
	section  Section
	selected string
}

func NewView(identity rehab.Identity, session SessionReader) *View {
	return &View{identity: identity, session: session, section: SectionDashboard}
}

func (v *View) Identity() rehab.Identity { return v.identity }

func (v *View) Section() Section {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.section
}

// Navigate switches section and drops any patient selection.
func (v *View) Navigate(s Section) error {
	if !validSection(s) {
		return ErrUnknownSection
	}
	v.mu.Lock()
	v.section = s
	v.selected = ""
	v.mu.Unlock()
	return nil
}

// SelectPatient opens the analytics detail for a roster entry. The id is not
// checked here; SelectedPatient resolves it against the roster each time.
func (v *View) SelectPatient(id string) {
	v.mu.Lock()
	v.selected = id
	v.section = SectionAnalytics
	v.mu.Unlock()
}

func (v *View) ClearSelection() {
	v.mu.Lock()
	v.selected = ""
	v.mu.Unlock()
}

func (v *View) SelectedPatient() (rehab.PatientRecord, bool) {
	v.mu.RLock()
	id := v.selected
	v.mu.RUnlock()
	if id == "" {
		return rehab.PatientRecord{}, false
	}
	for _, p := range v.session.Roster() {
		if p.ID == id {
			return p, true
		}
	}
	return rehab.PatientRecord{}, false
}

func (v *View) Patients() []rehab.PatientRecord {
	return v.session.Roster()
}

func (v *View) Appointments() []rehab.AppointmentRequest {
	return v.session.Appointments()
}

func (v *View) Overview() Overview {
	pending := 0
	for _, a := range v.session.Appointments() {
		if a.Status == rehab.StatusPending {
			pending++
		}
	}
	stats := make([]Stat, len(placeholderStats))
	copy(stats, placeholderStats)
	return Overview{
		ActivePatients:      len(v.session.Roster()),
		PendingAppointments: pending,
		Stats:               stats,
	}
}

func validSection(s Section) bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}
