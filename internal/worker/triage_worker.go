package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/queue"
	"github.com/spec-kit/triage-service/internal/triage"
)

const dequeueTimeout = 5 * time.Second

// TriageWorker drains the triage queue and runs the pipeline for each
// ticket. Workers process distinct tickets independently; a single
// ticket id is delivered to exactly one worker per enqueue.
type TriageWorker struct {
	queue     *queue.TriageQueue
	processor *triage.Processor
	logger    *zap.Logger
	count     int
	wg        sync.WaitGroup
}

// NewTriageWorker creates a worker pool of the given size (minimum 1).
func NewTriageWorker(q *queue.TriageQueue, processor *triage.Processor, count int, logger *zap.Logger) *TriageWorker {
	if count < 1 {
		count = 1
	}
	return &TriageWorker{
		queue:     q,
		processor: processor,
		logger:    logger,
		count:     count,
	}
}

// Start launches the worker goroutines. They run until ctx is cancelled.
func (w *TriageWorker) Start(ctx context.Context) {
	for i := 0; i < w.count; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Wait blocks until all workers have exited.
func (w *TriageWorker) Wait() {
	w.wg.Wait()
}

func (w *TriageWorker) run(ctx context.Context, id int) {
	defer w.wg.Done()
	log := w.logger.With(zap.Int("worker", id))
	log.Info("triage worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("triage worker stopping")
			return
		default:
		}

		ticketID, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) || ctx.Err() != nil {
				continue
			}
			log.Warn("triage queue poll failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		start := time.Now()
		result, err := w.processor.ProcessTicket(ctx, ticketID)
		if err != nil {
			log.Error("triage run failed",
				zap.String("ticket_id", ticketID),
				zap.Error(err))
			continue
		}

		fields := []zap.Field{
			zap.String("ticket_id", ticketID),
			zap.String("severity", string(result.Classification.Severity)),
			zap.String("priority", string(result.Classification.Priority)),
			zap.String("category", result.Classification.Category),
			zap.Duration("elapsed", time.Since(start)),
		}
		if result.Handler != nil {
			fields = append(fields, zap.String("handler", result.Handler.Email))
		}
		log.Info("triage run completed", fields...)
	}
}
