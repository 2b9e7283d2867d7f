package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/cache"
)

// AnswerSink persists autosaved answers.
type AnswerSink interface {
	SaveAnswer(ctx context.Context, attemptID uuid.UUID, questionID, answer string) error
}

// AutosaveWorker consumes persist_answers_queue and UPSERTs answers to PostgreSQL.
type AutosaveWorker struct {
	queue Queue
	sink  AnswerSink
	log   zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(queue Queue, sink AnswerSink, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		queue: queue,
		sink:  sink,
		log:   log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the worker loop and returns when ctx is done. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	raw, err := w.queue.Pop(ctx, pollTimeout)
	if err != nil {
		if !errors.Is(err, cache.ErrEmpty) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Queue pop error")
		}
		return
	}

	if err := w.persist(ctx, raw); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying in 5s")
		if err := w.queue.Push(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Requeue failed, answer dropped")
		}
		sleep(ctx, retryDelay)
	}
}

// persist writes one queued answer. Malformed payloads are logged and dropped.
func (w *AutosaveWorker) persist(ctx context.Context, raw string) error {
	var p cache.AnswerPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return nil
	}
	if p.AttemptID == uuid.Nil || p.QuestionID == "" {
		w.log.Error().Str("payload", raw).Msg("Answer payload without attempt or question")
		return nil
	}

	return w.sink.SaveAnswer(ctx, p.AttemptID, p.QuestionID, p.Answer)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.queue.TryPop(ctx)
		if err != nil {
			break
		}

		if err := w.persist(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			_ = w.queue.Push(ctx, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
