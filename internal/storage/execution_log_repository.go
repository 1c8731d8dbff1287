package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"prompt_trace/internal/models"
)

// ExecutionLogRepository handles execution log database operations
type ExecutionLogRepository struct {
	db *DB
}

// NewExecutionLogRepository creates a new execution log repository
func NewExecutionLogRepository(db *DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

// Insert persists a finalized log row and fills in the generated id and
// creation timestamp. The blob prefix is patched in afterwards because
// it embeds the generated id.
func (r *ExecutionLogRepository) Insert(ctx context.Context, log *models.ExecutionLog) error {
	query := `
		INSERT INTO execution_logs (
			tenant_id, project_id, prompt_id, prompt_version,
			success, error_message, duration_ms, trace_parent, trace_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query,
		log.TenantID, log.ProjectID, log.PromptID, log.PromptVersion,
		log.Success, log.ErrorMessage, log.DurationMS, log.TraceParent, log.TraceID,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}

	return nil
}

// SetBlobPrefix records the deterministic artifact path for a log.
func (r *ExecutionLogRepository) SetBlobPrefix(ctx context.Context, id int64, prefix string) error {
	query := `UPDATE execution_logs SET blob_prefix = $2 WHERE id = $1`

	if _, err := r.db.conn.ExecContext(ctx, query, id, prefix); err != nil {
		return fmt.Errorf("failed to set blob prefix: %w", err)
	}
	return nil
}

// GetByID retrieves one log scoped to its tenant and project.
func (r *ExecutionLogRepository) GetByID(ctx context.Context, tenantID, projectID, id int64) (*models.ExecutionLog, error) {
	query := `
		SELECT id, tenant_id, project_id, prompt_id, prompt_version,
		       success, error_message, duration_ms, blob_prefix,
		       trace_parent, trace_id, provider, model, usage, created_at
		FROM execution_logs
		WHERE tenant_id = $1 AND project_id = $2 AND id = $3
	`

	var log models.ExecutionLog
	err := r.db.conn.GetContext(ctx, &log, query, tenantID, projectID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("failed to get execution log: %w", err)
	}

	return &log, nil
}

// SetProviderUsage enriches a log with its provider, model and
// normalized usage. The write only lands while provider is still null,
// so a redelivered message can never overwrite an earlier enrichment.
func (r *ExecutionLogRepository) SetProviderUsage(ctx context.Context, id int64, provider, model string, usage models.JSONB) error {
	query := `
		UPDATE execution_logs
		SET provider = $2, model = $3, usage = $4
		WHERE id = $1 AND provider IS NULL
	`

	if _, err := r.db.conn.ExecContext(ctx, query, id, provider, model, usage); err != nil {
		return fmt.Errorf("failed to set provider usage: %w", err)
	}
	return nil
}

// ListByTrace returns every log sharing a trace id, oldest first. The id
// tiebreak keeps the order stable for logs created in the same instant.
func (r *ExecutionLogRepository) ListByTrace(ctx context.Context, tenantID, projectID int64, traceID string) ([]models.ExecutionLog, error) {
	query := `
		SELECT id, tenant_id, project_id, prompt_id, prompt_version,
		       success, error_message, duration_ms, blob_prefix,
		       trace_parent, trace_id, provider, model, usage, created_at
		FROM execution_logs
		WHERE tenant_id = $1 AND project_id = $2 AND trace_id = $3
		ORDER BY created_at ASC, id ASC
	`

	var logs []models.ExecutionLog
	if err := r.db.conn.SelectContext(ctx, &logs, query, tenantID, projectID, traceID); err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}

	return logs, nil
}
