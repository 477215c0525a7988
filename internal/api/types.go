package api

import (
	"time"

	"github.com/hackgods/neuro-rehab-portal/internal/clinician"
	"github.com/hackgods/neuro-rehab-portal/internal/patient"
	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

type LoginRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
	ID   string `json:"id,omitempty"`
}

type SectionRequest struct {
	Section string `json:"section"`
}

type ChatRequest struct {
	Text string `json:"text"`
}

type IdentityResponse struct {
	Name string `json:"name"`
	Role string `json:"role"`
	ID   string `json:"id"`
}

type SessionResponse struct {
	View     string            `json:"view"` // landing, clinician, patient
	Identity *IdentityResponse `json:"identity,omitempty"`
}

type PatientResponse struct {
	Name        string    `json:"name"`
	ID          string    `json:"id"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

type AppointmentResponse struct {
	Seq         int       `json:"seq"`
	PatientName string    `json:"patient_name"`
	PatientID   string    `json:"patient_id"`
	RequestedAt time.Time `json:"requested_at"`
	Status      string    `json:"status"`
}

type AppointmentSentResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Notice      string              `json:"notice"`
}

type StatResponse struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Trend string `json:"trend,omitempty"`
}

type OverviewResponse struct {
	Section             string         `json:"section"`
	ActivePatients      int            `json:"active_patients"`
	PendingAppointments int            `json:"pending_appointments"`
	Stats               []StatResponse `json:"stats"`
}

type SelectionResponse struct {
	Section  string           `json:"section"`
	Selected bool             `json:"selected"`
	Patient  *PatientResponse `json:"patient,omitempty"`
}

type TaskResponse struct {
	ID        int    `json:"id"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
	Duration  string `json:"duration"`
}

type ChecklistResponse struct {
	Tasks             []TaskResponse `json:"tasks"`
	CompletionPercent int            `json:"completion_percent"`
}

type CaptureResponse struct {
	State    string `json:"state"`
	TaskID   int    `json:"task_id,omitempty"`
	Progress int    `json:"progress"`
}

type MessageResponse struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type TranscriptResponse struct {
	Messages  []MessageResponse `json:"messages"`
	Composing bool              `json:"composing"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toIdentity(id rehab.Identity) *IdentityResponse {
	return &IdentityResponse{Name: id.Name, Role: string(id.Role), ID: id.ID}
}

func toPatient(p rehab.PatientRecord) PatientResponse {
	return PatientResponse{Name: p.Name, ID: p.ID, FirstSeenAt: p.FirstSeenAt}
}

func toPatients(in []rehab.PatientRecord) []PatientResponse {
	out := make([]PatientResponse, 0, len(in))
	for _, p := range in {
		out = append(out, toPatient(p))
	}
	return out
}

func toAppointment(a rehab.AppointmentRequest) AppointmentResponse {
	return AppointmentResponse{
		Seq:         a.Seq,
		PatientName: a.PatientName,
		PatientID:   a.PatientID,
		RequestedAt: a.RequestedAt,
		Status:      string(a.Status),
	}
}

func toAppointments(in []rehab.AppointmentRequest) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(in))
	for _, a := range in {
		out = append(out, toAppointment(a))
	}
	return out
}

func toOverview(section clinician.Section, o clinician.Overview) OverviewResponse {
	stats := make([]StatResponse, 0, len(o.Stats))
	for _, s := range o.Stats {
		stats = append(stats, StatResponse{Label: s.Label, Value: s.Value, Trend: s.Trend})
	}
	return OverviewResponse{
		Section:             string(section),
		ActivePatients:      o.ActivePatients,
		PendingAppointments: o.PendingAppointments,
		Stats:               stats,
	}
}

func toSelection(v *clinician.View) SelectionResponse {
	resp := SelectionResponse{Section: string(v.Section())}
	if p, ok := v.SelectedPatient(); ok {
		pr := toPatient(p)
		resp.Selected = true
		resp.Patient = &pr
	}
	return resp
}

func toChecklist(c *patient.Checklist) ChecklistResponse {
	tasks := c.Tasks()
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTask(t))
	}
	return ChecklistResponse{Tasks: out, CompletionPercent: c.CompletionPercent()}
}

func toTask(t rehab.Task) TaskResponse {
	return TaskResponse{ID: t.ID, Label: t.Label, Completed: t.Completed, Duration: t.Duration}
}

func toCapture(s patient.CaptureSnapshot) CaptureResponse {
	return CaptureResponse{State: string(s.State), TaskID: s.TaskID, Progress: s.Progress}
}

func toMessage(m rehab.Message) MessageResponse {
	return MessageResponse{Role: string(m.Role), Text: m.Text, At: m.At}
}

func toTranscript(c *patient.Conversation) TranscriptResponse {
	msgs := c.Messages()
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	return TranscriptResponse{Messages: out, Composing: c.Composing()}
}
