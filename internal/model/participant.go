package model

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a person taking assessments.
type Participant struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Admission records a participant's first entry into a session, which is counted once.
// Seated is false after the participant left.
type Admission struct {
	SessionID     uuid.UUID  `json:"session_id"`
	ParticipantID int        `json:"participant_id"`
	Seated        bool       `json:"seated"`
	AdmittedAt    time.Time  `json:"admitted_at"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
}

// Entrant is what the admission decision needs to know about the person at the door.
type Entrant struct {
	Registered         bool
	Seated             bool
	PreviouslyAdmitted bool
}

// AdmissionReason explains a negative admission decision.
type AdmissionReason string

const (
	ReasonNone          AdmissionReason = ""
	ReasonNotYetOpen    AdmissionReason = "not yet open"
	ReasonClosed        AdmissionReason = "closed"
	ReasonNotRegistered AdmissionReason = "not registered"
	ReasonFull          AdmissionReason = "full"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allow  bool            `json:"allow"`
	Reason AdmissionReason `json:"reason,omitempty"`
	// Resume is true when the entrant was already counted and no capacity is consumed.
	Resume bool `json:"resume,omitempty"`
}
