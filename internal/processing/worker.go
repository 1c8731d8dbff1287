package processing

import (
	"context"
	"fmt"
	"time"

	"prompt_trace/internal/logging"
	"prompt_trace/internal/queue"
)

// Worker consumes processing messages in batches: index and enrich the
// log, then aggregate its trace if it has one. Delivery is
// at-least-once and unordered, so every step downstream recomputes from
// current state instead of applying deltas; a failed message is
// re-enqueued with its attempt count bumped and parked in the
// dead-letter queue once MaxRetries deliveries are used up.
type Worker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	logs        LogStore
	processor   *LogProcessor
	extractor   *TraceExtractor
	config      *queue.Config
	logger      *logging.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewWorker creates a new processing worker
func NewWorker(q queue.Queue, dlq queue.DeadLetterQueue, logs LogStore, processor *LogProcessor, extractor *TraceExtractor, config *queue.Config) *Worker {
	if config == nil {
		config = queue.DefaultConfig("processing")
	}

	return &Worker{
		queue:       q,
		dlq:         dlq,
		logs:        logs,
		processor:   processor,
		extractor:   extractor,
		config:      config,
		logger:      logging.NewLogger("processing-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// run is the main worker loop
func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Processing worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Processing worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// processBatch dequeues and processes one batch of messages
func (w *Worker) processBatch(ctx context.Context) {
	msgs, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		w.logger.Error("Failed to dequeue messages", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(msgs) == 0 {
		return
	}

	w.logger.Debug("Processing batch", "count", len(msgs))

	for _, msg := range msgs {
		if err := w.ProcessMessage(ctx, msg); err != nil {
			w.logger.Error("Failed to process message", "log_id", msg.LogID, "attempts", msg.Attempts, "error", err)
			w.redeliver(ctx, msg, err)
		}
	}
}

// ProcessMessage handles one delivery: index and enrich the log, then
// re-read it and aggregate its trace if it carries a trace id. Any
// error leaves the message unacknowledged so it gets redelivered.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	if err := w.processor.Process(ctx, msg); err != nil {
		return err
	}

	// Re-read rather than trusting the message: enrichment may have
	// just run, and the trace id lives on the row, not in the message.
	log, err := w.logs.GetByID(ctx, msg.TenantID, msg.ProjectID, msg.LogID)
	if err != nil {
		return fmt.Errorf("failed to reload log %d: %w", msg.LogID, err)
	}

	if log.TraceID == nil || *log.TraceID == "" {
		return nil
	}

	return w.extractor.Extract(ctx, msg.TenantID, msg.ProjectID, *log.TraceID)
}

// redeliver re-enqueues a failed message or parks it in the dead-letter
// queue once its deliveries are used up.
func (w *Worker) redeliver(ctx context.Context, msg queue.Message, cause error) {
	msg.Attempts++

	if msg.Attempts >= w.config.MaxRetries {
		if w.dlq == nil {
			w.logger.Warn("Dropping message, no dead letter queue", "log_id", msg.LogID)
			return
		}
		if err := w.dlq.Add(ctx, msg, fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, cause)); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "log_id", msg.LogID, "error", err)
			return
		}
		w.logger.Warn("Message moved to DLQ", "log_id", msg.LogID, "error", cause)
		return
	}

	if err := w.queue.Enqueue(ctx, msg); err != nil {
		w.logger.Error("Failed to re-enqueue message", "log_id", msg.LogID, "error", err)
	}
}

// QueueLength returns the current queue length
func (w *Worker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems returns parked messages for inspection
func (w *Worker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a parked message with a fresh attempt
// count and removes it from the dead-letter queue.
func (w *Worker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, item := range items {
		if item.ID == id {
			msg := item.Message
			msg.Attempts = 0
			if err := w.queue.Enqueue(ctx, msg); err != nil {
				return fmt.Errorf("failed to re-enqueue message: %w", err)
			}
			if err := w.dlq.Remove(ctx, id); err != nil {
				return fmt.Errorf("failed to remove from DLQ: %w", err)
			}
			return nil
		}
	}

	return queue.ErrItemNotFound
}
