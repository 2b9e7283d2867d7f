// Package cache keeps the Redis side of the engine: test metadata, answer autosave buffers
// and the persist queues drained by the workers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/psytest-backend/internal/config"
	"github.com/stemsi/psytest-backend/internal/model"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

// AnswerPayload is queued on every autosaved answer.
type AnswerPayload struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	ParticipantID int       `json:"participant_id"`
	SessionID     uuid.UUID `json:"session_id"`
	TestID        uuid.UUID `json:"test_id"`
	QuestionID    string    `json:"q_id"`
	Answer        string    `json:"answer"`
}

// ScorePayload is queued when an externally computed raw score arrives.
type ScorePayload struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	ParticipantID int       `json:"participant_id"`
	SessionID     uuid.UUID `json:"session_id"`
	TestID        uuid.UUID `json:"test_id"`
	RawScore      float64   `json:"raw_score"`
}

// Store wraps the Redis client.
type Store struct {
	rdb     *redis.Client
	testTTL time.Duration
}

// New creates a Store. testTTL bounds how long test metadata stays cached.
func New(rdb *redis.Client, testTTL time.Duration) *Store {
	return &Store{rdb: rdb, testTTL: testTTL}
}

// Client exposes the underlying client for the queue consumers.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

// ─── Test metadata ──────────────────────────────────────────────────

// GetTest returns the cached test or ErrMiss.
func (s *Store) GetTest(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.TestMetaKey(id.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get test meta: %w", err)
	}

	var t model.Test
	if err := json.Unmarshal(raw, &t); err != nil {
		// corrupt entry, let the caller reload it
		_ = s.rdb.Del(ctx, config.CacheKey.TestMetaKey(id.String())).Err()
		return nil, ErrMiss
	}
	return &t, nil
}

// SetTest caches test metadata.
func (s *Store) SetTest(ctx context.Context, t *model.Test) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal test meta: %w", err)
	}
	return s.rdb.Set(ctx, config.CacheKey.TestMetaKey(t.ID.String()), raw, s.testTTL).Err()
}

// ─── Answer autosave ────────────────────────────────────────────────

// BufferAnswer stores the answer in the attempt's hash. It reports whether the question had
// no answer before.
func (s *Store) BufferAnswer(ctx context.Context, p AnswerPayload) (bool, error) {
	key := config.CacheKey.AttemptAnswersKey(p.SessionID.String(), p.TestID.String(), p.ParticipantID)
	added, err := s.rdb.HSet(ctx, key, p.QuestionID, p.Answer).Result()
	if err != nil {
		return false, fmt.Errorf("buffer answer: %w", err)
	}
	return added > 0, nil
}

// DropAnswer removes a buffered answer whose attempt update did not go through.
func (s *Store) DropAnswer(ctx context.Context, p AnswerPayload) error {
	key := config.CacheKey.AttemptAnswersKey(p.SessionID.String(), p.TestID.String(), p.ParticipantID)
	if err := s.rdb.HDel(ctx, key, p.QuestionID).Err(); err != nil {
		return fmt.Errorf("drop answer: %w", err)
	}
	return nil
}

// QueueAnswer pushes an answer onto the persist queue for the autosave worker.
func (s *Store) QueueAnswer(ctx context.Context, p AnswerPayload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw).Err()
}

// Answers returns the autosaved answers of an attempt, keyed by question ID.
func (s *Store) Answers(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (map[string]string, error) {
	key := config.CacheKey.AttemptAnswersKey(sessionID.String(), testID.String(), participantID)
	m, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	return m, nil
}

// ─── Scores ─────────────────────────────────────────────────────────

// QueueScore pushes a raw score onto the scoring queue.
func (s *Store) QueueScore(ctx context.Context, p ScorePayload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistScoresQueue, raw).Err()
}

// ─── Queues ─────────────────────────────────────────────────────────

// QueueDepths returns the length of each persist queue, keyed by queue name.
func (s *Store) QueueDepths(ctx context.Context) (map[string]int64, error) {
	queues := []string{config.WorkerKey.PersistAnswersQueue, config.WorkerKey.PersistScoresQueue}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(queues))
	for i, q := range queues {
		cmds[i] = pipe.LLen(ctx, q)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue depths: %w", err)
	}

	depths := make(map[string]int64, len(queues))
	for i, q := range queues {
		depths[q] = cmds[i].Val()
	}
	return depths, nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// ClearAnswers drops the autosave buffers of scored attempts. Their answers are already in
// PostgreSQL.
func (s *Store) ClearAnswers(ctx context.Context, scores []ScorePayload) error {
	if len(scores) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, p := range scores {
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(p.SessionID.String(), p.TestID.String(), p.ParticipantID))
	}
	_, err := pipe.Exec(ctx)
	return err
}
