package processing

import (
	"context"
	"errors"
	"fmt"

	"prompt_trace/internal/blob"
	"prompt_trace/internal/logging"
	"prompt_trace/internal/models"
	"prompt_trace/internal/queue"
	"prompt_trace/internal/usage"
)

// LogProcessor indexes and enriches one execution log per message. Both
// halves recompute from current state, so reprocessing a redelivered
// message lands on the same rows instead of duplicating them.
type LogProcessor struct {
	logs   LogStore
	fields FieldStore
	blobs  blob.Store
	logger *logging.Logger
}

// NewLogProcessor creates a new log processor
func NewLogProcessor(logs LogStore, fields FieldStore, blobs blob.Store) *LogProcessor {
	return &LogProcessor{
		logs:   logs,
		fields: fields,
		blobs:  blobs,
		logger: logging.NewLogger("log-processor"),
	}
}

// Process loads the message's log, fills in provider/model/usage from
// the archived response, and writes the searchable field rows from the
// archived variables. A log without a blob prefix has nothing archived
// and is a legitimate no-op, not an error.
func (p *LogProcessor) Process(ctx context.Context, msg queue.Message) error {
	log, err := p.logs.GetByID(ctx, msg.TenantID, msg.ProjectID, msg.LogID)
	if err != nil {
		return fmt.Errorf("failed to load log %d: %w", msg.LogID, err)
	}

	if log.BlobPrefix == nil {
		return nil
	}

	if err := p.enrich(ctx, log); err != nil {
		return err
	}

	return p.index(ctx, log)
}

// enrich sets provider/model/usage once. Absence of a response
// artifact, an unrecognized provider, or a response without token
// counts all leave the row as it is; enrichment is best-effort.
func (p *LogProcessor) enrich(ctx context.Context, log *models.ExecutionLog) error {
	if log.Provider != nil {
		return nil
	}

	data, err := p.blobs.Get(ctx, *log.BlobPrefix+blob.FileResponse)
	if errors.Is(err, blob.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load response artifact: %w", err)
	}

	provider, model, payload, ok := usage.ExtractResponse(data)
	if !ok {
		return nil
	}

	normalized, ok := usage.Normalize(provider, payload)
	if !ok {
		return nil
	}

	if err := p.logs.SetProviderUsage(ctx, log.ID, provider, model, normalized); err != nil {
		return fmt.Errorf("failed to enrich log %d: %w", log.ID, err)
	}

	p.logger.Debug("Log enriched", "log_id", log.ID, "provider", provider, "model", model)
	return nil
}

// index flattens the archived variables into search rows. A missing
// variables artifact is a no-op; a malformed one is a hard error.
func (p *LogProcessor) index(ctx context.Context, log *models.ExecutionLog) error {
	data, err := p.blobs.Get(ctx, *log.BlobPrefix+blob.FileVariables)
	if errors.Is(err, blob.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load variables artifact: %w", err)
	}

	flat, err := FlattenVariables(data)
	if err != nil {
		return fmt.Errorf("log %d: %w", log.ID, err)
	}
	if len(flat) == 0 {
		return nil
	}

	fields := make([]models.LogField, 0, len(flat))
	for _, f := range flat {
		fields = append(fields, models.LogField{
			TenantID:     log.TenantID,
			ProjectID:    log.ProjectID,
			PromptID:     log.PromptID,
			LogID:        log.ID,
			Path:         f.Path,
			Value:        f.Value,
			LogCreatedAt: log.CreatedAt,
		})
	}

	if err := p.fields.InsertBatch(ctx, fields); err != nil {
		return fmt.Errorf("failed to index log %d: %w", log.ID, err)
	}

	p.logger.Debug("Log indexed", "log_id", log.ID, "fields", len(fields))
	return nil
}
