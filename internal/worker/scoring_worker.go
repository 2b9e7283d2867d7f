package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/cache"
)

const (
	ScoreBatchSize    = 50
	ScoreBatchTimeout = 2 * time.Second
)

// ScoreSink stores raw scores on finished attempts.
type ScoreSink interface {
	SetRawScores(ctx context.Context, ids []uuid.UUID, scores []float64) (int64, error)
	SetRawScore(ctx context.Context, id uuid.UUID, score float64) error
}

// BufferCleaner drops the autosave buffers of scored attempts.
type BufferCleaner interface {
	ClearAnswers(ctx context.Context, scores []cache.ScorePayload) error
}

// ScoringWorker batches persist_scores_queue into bulk raw score updates.
type ScoringWorker struct {
	queue   Queue
	sink    ScoreSink
	buffers BufferCleaner
	log     zerolog.Logger
}

func NewScoringWorker(queue Queue, sink ScoreSink, buffers BufferCleaner, log zerolog.Logger) *ScoringWorker {
	return &ScoringWorker{
		queue:   queue,
		sink:    sink,
		buffers: buffers,
		log:     log.With().Str("component", "scoring_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ScoringWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ScoringWorker started")

	batch := make([]cache.ScorePayload, 0, ScoreBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ScoreBatchSize || time.Since(lastFlush) >= ScoreBatchTimeout) {
			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			return

		default:
			raw, err := w.queue.Pop(ctx, pollTimeout)
			if err != nil {
				if !errors.Is(err, cache.ErrEmpty) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Queue pop error")
				}
				continue
			}

			var p cache.ScorePayload
			if err := json.Unmarshal([]byte(raw), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, p)
		}
	}
}

// ----------------------------------------------------------------
// Bulk update with single-row fallback
// ----------------------------------------------------------------

// flush writes the batch in one statement. When that fails each score is retried on its
// own, and the ones that still fail go back on the queue.
func (w *ScoringWorker) flush(ctx context.Context, batch []cache.ScorePayload) {
	if len(batch) == 0 {
		return
	}
	batch = latestPerAttempt(batch)

	ids := make([]uuid.UUID, len(batch))
	scores := make([]float64, len(batch))
	for i, p := range batch {
		ids[i] = p.AttemptID
		scores[i] = p.RawScore
	}

	stored := batch
	n, err := w.sink.SetRawScores(ctx, ids, scores)
	if err != nil {
		w.log.Warn().Err(err).Msg("bulk score update failed, using fallback")

		stored = stored[:0:0]
		for _, p := range batch {
			if err := w.sink.SetRawScore(ctx, p.AttemptID, p.RawScore); err != nil {
				w.log.Error().Err(err).Str("attempt_id", p.AttemptID.String()).Msg("SetRawScore failed, requeueing")
				raw, _ := json.Marshal(p)
				if err := w.queue.Push(ctx, string(raw)); err != nil {
					w.log.Error().Err(err).Msg("Requeue failed, score dropped")
				}
				continue
			}
			stored = append(stored, p)
		}
	} else {
		w.log.Info().Int("batch", len(batch)).Int64("updated", n).Msg("Scores persisted")
	}

	if err := w.buffers.ClearAnswers(ctx, stored); err != nil {
		w.log.Warn().Err(err).Msg("Failed to clear autosave buffers")
	}
}

// latestPerAttempt keeps the last queued score of each attempt. UNNEST updates with
// duplicate IDs would apply an arbitrary one.
func latestPerAttempt(batch []cache.ScorePayload) []cache.ScorePayload {
	pos := make(map[uuid.UUID]int, len(batch))
	out := make([]cache.ScorePayload, 0, len(batch))
	for _, p := range batch {
		if i, ok := pos[p.AttemptID]; ok {
			out[i] = p
			continue
		}
		pos[p.AttemptID] = len(out)
		out = append(out, p)
	}
	return out
}
