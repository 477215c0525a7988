package session

import (
	"github.com/hackgods/neuro-rehab-portal/internal/clinician"
	"github.com/hackgods/neuro-rehab-portal/internal/patient"
	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

// View is the top-level screen for the active identity. It is one of
// NoSession, ClinicianSession or PatientSession.
type View interface {
	view()
}

type NoSession struct{}

type ClinicianSession struct {
	Identity rehab.Identity
	View     *clinician.View
}

type PatientSession struct {
	Identity rehab.Identity
	View     *patient.View
}

func (NoSession) view()        {}
func (ClinicianSession) view() {}
func (PatientSession) view()   {}

// closeView tears down per-role state held by a view.
func closeView(v View) {
	switch cur := v.(type) {
	case PatientSession:
		cur.View.Close()
	case ClinicianSession, NoSession:
	}
}
