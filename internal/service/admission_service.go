package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/clock"
	"github.com/stemsi/psytest-backend/internal/engine"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
)

// AdmissionService lets participants in and out of sessions.
type AdmissionService struct {
	sessions   SessionStore
	admissions AdmissionStore
	clock      clock.Clock
	log        zerolog.Logger
}

// NewAdmissionService creates a new AdmissionService.
func NewAdmissionService(sessions SessionStore, admissions AdmissionStore, clk clock.Clock, log zerolog.Logger) *AdmissionService {
	return &AdmissionService{
		sessions:   sessions,
		admissions: admissions,
		clock:      clk,
		log:        log.With().Str("component", "admission_service").Logger(),
	}
}

// Join admits a participant to the session behind code. The decision and seat update
// happen under a row lock, so concurrent joins never push the count past the cap.
func (s *AdmissionService) Join(ctx context.Context, code string, participantID int) (*model.Session, model.Decision, error) {
	sess, err := s.sessions.GetByJoinCode(ctx, strings.TrimSpace(code))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.Decision{}, ErrInvalidJoinCode
	}
	if err != nil {
		return nil, model.Decision{}, fmt.Errorf("find session by code: %w", err)
	}

	return s.Enter(ctx, sess.ID, participantID)
}

// Enter admits a participant to a session by ID.
func (s *AdmissionService) Enter(ctx context.Context, sessionID uuid.UUID, participantID int) (*model.Session, model.Decision, error) {
	now := s.clock.Now()
	decide := func(sess model.Session, e model.Entrant) model.Decision {
		return engine.Decide(sess, e, now)
	}

	d, sess, err := s.admissions.Admit(ctx, sessionID, participantID, now, decide)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.Decision{}, ErrSessionNotFound
	}
	if err != nil {
		return nil, model.Decision{}, fmt.Errorf("admit participant: %w", err)
	}

	if err := engine.DecisionErr(d, sessionID, participantID); err != nil {
		s.log.Info().
			Str("session_id", sessionID.String()).
			Int("participant_id", participantID).
			Str("reason", string(d.Reason)).
			Msg("Admission refused")
		return nil, d, err
	}

	sess.Status = engine.EffectiveStatus(*sess, now)
	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("participant_id", participantID).
		Bool("resume", d.Resume).
		Int("current_participants", sess.CurrentParticipants).
		Msg("Participant admitted")
	return sess, d, nil
}

// Leave marks a seated participant as gone. The seat remains counted.
func (s *AdmissionService) Leave(ctx context.Context, sessionID uuid.UUID, participantID int) error {
	err := s.admissions.Leave(ctx, sessionID, participantID, s.clock.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotAdmitted
	}
	if err != nil {
		return fmt.Errorf("leave session: %w", err)
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("participant_id", participantID).
		Msg("Participant left session")
	return nil
}
