package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/cache"
	"github.com/stemsi/psytest-backend/internal/clock"
)

type memQueue struct {
	mu    sync.Mutex
	items []string
}

func (q *memQueue) Name() string { return "mem" }

func (q *memQueue) Pop(ctx context.Context, _ time.Duration) (string, error) {
	return q.TryPop(ctx)
}

func (q *memQueue) TryPop(context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", cache.ErrEmpty
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, nil
}

func (q *memQueue) Push(_ context.Context, items ...string) error {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
	return nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func push(t *testing.T, q *memQueue, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	_ = q.Push(context.Background(), string(raw))
}

type answerSink struct {
	saved map[string]string
	err   error
}

func (s *answerSink) SaveAnswer(_ context.Context, _ uuid.UUID, q, a string) error {
	if s.err != nil {
		return s.err
	}
	s.saved[q] = a
	return nil
}

func TestAutosaveWorkerPersists(t *testing.T) {
	q := &memQueue{}
	sink := &answerSink{saved: map[string]string{}}
	w := NewAutosaveWorker(q, sink, zerolog.Nop())

	attempt := uuid.New()
	push(t, q, cache.AnswerPayload{AttemptID: attempt, QuestionID: "q1", Answer: "A"})
	_ = q.Push(context.Background(), "{not json")
	push(t, q, cache.AnswerPayload{AttemptID: attempt, QuestionID: "q1", Answer: "D"})

	ctx := context.Background()
	for range 3 {
		w.processNext(ctx)
	}
	if sink.saved["q1"] != "D" || q.len() != 0 {
		t.Fatalf("expected last answer to win and queue empty, got %v, %d left", sink.saved, q.len())
	}
}

func TestAutosaveWorkerRequeuesOnFailure(t *testing.T) {
	q := &memQueue{}
	sink := &answerSink{saved: map[string]string{}, err: errors.New("db down")}
	w := NewAutosaveWorker(q, sink, zerolog.Nop())
	push(t, q, cache.AnswerPayload{AttemptID: uuid.New(), QuestionID: "q1", Answer: "A"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.processNext(ctx)
	if q.len() != 1 {
		t.Fatalf("failed answer should be back on the queue, have %d", q.len())
	}
}

func TestAutosaveWorkerDrainsOnShutdown(t *testing.T) {
	q := &memQueue{}
	sink := &answerSink{saved: map[string]string{}}
	w := NewAutosaveWorker(q, sink, zerolog.Nop())
	for _, qid := range []string{"q1", "q2", "q3"} {
		push(t, q, cache.AnswerPayload{AttemptID: uuid.New(), QuestionID: qid, Answer: "B"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)
	if len(sink.saved) != 3 || q.len() != 0 {
		t.Fatalf("expected all answers drained, saved %d, %d left", len(sink.saved), q.len())
	}
}

type scoreSink struct {
	bulkErr error
	failing map[uuid.UUID]bool
	scores  map[uuid.UUID]float64
	bulks   int
}

func (s *scoreSink) SetRawScores(_ context.Context, ids []uuid.UUID, scores []float64) (int64, error) {
	if s.bulkErr != nil {
		return 0, s.bulkErr
	}
	s.bulks++
	for i, id := range ids {
		s.scores[id] = scores[i]
	}
	return int64(len(ids)), nil
}

func (s *scoreSink) SetRawScore(_ context.Context, id uuid.UUID, score float64) error {
	if s.failing[id] {
		return errors.New("row locked")
	}
	s.scores[id] = score
	return nil
}

type cleaner struct{ cleared []uuid.UUID }

func (c *cleaner) ClearAnswers(_ context.Context, scores []cache.ScorePayload) error {
	for _, p := range scores {
		c.cleared = append(c.cleared, p.AttemptID)
	}
	return nil
}

func TestScoringWorkerBulkFlush(t *testing.T) {
	q := &memQueue{}
	sink := &scoreSink{scores: map[uuid.UUID]float64{}}
	cl := &cleaner{}
	w := NewScoringWorker(q, sink, cl, zerolog.Nop())

	a, b := uuid.New(), uuid.New()
	w.flush(context.Background(), []cache.ScorePayload{
		{AttemptID: a, RawScore: 40},
		{AttemptID: b, RawScore: 55},
		{AttemptID: a, RawScore: 62},
	})

	if sink.bulks != 1 || sink.scores[a] != 62 || sink.scores[b] != 55 {
		t.Fatalf("expected one bulk update with the latest score per attempt, got %+v", sink)
	}
	if len(cl.cleared) != 2 {
		t.Fatalf("expected both buffers cleared, got %v", cl.cleared)
	}
}

func TestScoringWorkerFallback(t *testing.T) {
	q := &memQueue{}
	a, b := uuid.New(), uuid.New()
	sink := &scoreSink{
		bulkErr: errors.New("deadlock detected"),
		failing: map[uuid.UUID]bool{b: true},
		scores:  map[uuid.UUID]float64{},
	}
	cl := &cleaner{}
	w := NewScoringWorker(q, sink, cl, zerolog.Nop())

	w.flush(context.Background(), []cache.ScorePayload{{AttemptID: a, RawScore: 70}, {AttemptID: b, RawScore: 80}})

	if sink.scores[a] != 70 || len(cl.cleared) != 1 || cl.cleared[0] != a {
		t.Fatalf("single update should store and clear only the first score: %+v %v", sink.scores, cl.cleared)
	}
	raw, err := q.TryPop(context.Background())
	if err != nil {
		t.Fatal("failed score should be requeued")
	}
	var p cache.ScorePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.AttemptID != b || p.RawScore != 80 {
		t.Fatalf("unexpected requeued payload %s", raw)
	}
}

type sweepFakes struct {
	calls  []string
	before time.Time
}

func (f *sweepFakes) SweepStatuses(context.Context, int) (int, error) {
	f.calls = append(f.calls, "sessions")
	return 1, nil
}

func (f *sweepFakes) TickOpen(_ context.Context, before time.Time, _ int) (int, error) {
	f.calls = append(f.calls, "attempts")
	f.before = before
	return 0, errors.New("db down")
}

func TestSweepOrder(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	f := &sweepFakes{}
	w := NewSweepWorker(f, f, clock.Fixed(now), time.Minute, zerolog.Nop())

	w.Sweep(context.Background())
	if len(f.calls) != 2 || f.calls[0] != "sessions" || f.calls[1] != "attempts" {
		t.Fatalf("sessions must be swept before attempts, got %v", f.calls)
	}
	if !f.before.Equal(now) {
		t.Fatalf("attempts should be ticked as of the clock, got %v", f.before)
	}
}
