package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/stemsi/psytest-backend/internal/engine"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/service"
)

// AttemptProgressResponse is returned after an answer or finish event.
type AttemptProgressResponse struct {
	Attempt model.Attempt  `json:"attempt"`
	Outcome engine.Outcome `json:"outcome"`
}

// NewAttemptProgress wraps the result of an attempt event.
func NewAttemptProgress(p engine.Progress) AttemptProgressResponse {
	return AttemptProgressResponse{Attempt: p.Attempt, Outcome: p.Outcome}
}

// LobbyEntryResponse is one session in a participant's lobby.
type LobbyEntryResponse struct {
	ID              uuid.UUID           `json:"id"`
	Name            string              `json:"name"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	TargetPosition  string              `json:"target_position"`
	Status          model.SessionStatus `json:"status"`
	AllowLateEntry  bool                `json:"allow_late_entry"`
	MaxParticipants *int                `json:"max_participants,omitempty"`
	CanEnter        bool                `json:"can_enter"`
	Reason          string              `json:"reason,omitempty"`
}

// NewLobby converts lobby entries to their response form.
func NewLobby(entries []service.LobbyEntry) ([]LobbyEntryResponse, error) {
	out := make([]LobbyEntryResponse, 0, len(entries))
	for _, e := range entries {
		var r LobbyEntryResponse
		if err := copier.Copy(&r, &e.Session); err != nil {
			return nil, err
		}
		r.CanEnter = e.Decision.Allow
		r.Reason = string(e.Decision.Reason)
		out = append(out, r)
	}
	return out, nil
}

// JoinResponse is returned when a participant enters a session.
type JoinResponse struct {
	Session model.Session `json:"session"`
	Resume  bool          `json:"resume"`
}
