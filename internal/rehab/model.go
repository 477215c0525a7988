package rehab

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleNone      Role = "none"
	RoleClinician Role = "clinician"
	RolePatient   Role = "patient"
)

// ParseRole accepts the role names used by the login form. "doctor" is kept
// as an alias for clinician.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clinician", "doctor":
		return RoleClinician
	case "patient":
		return RolePatient
	default:
		return RoleNone
	}
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
)

type Identity struct {
	Name string
	Role Role
	ID   string
}

type PatientRecord struct {
	Name        string
	ID          string
	FirstSeenAt time.Time
}

type AppointmentRequest struct {
	Seq         int
	PatientName string
	PatientID   string
	RequestedAt time.Time
	Status      AppointmentStatus
}

type Task struct {
	ID        int
	Label     string
	Completed bool
	Duration  string
}

type MessageRole string

const (
	MessageUser      MessageRole = "user"
	MessageAssistant MessageRole = "assistant"
)

type Message struct {
	Role MessageRole
	Text string
	At   time.Time
}

const identifierLen = 8

// NewIdentifier returns an 8 character uppercase alphanumeric token.
func NewIdentifier() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:identifierLen])
}
