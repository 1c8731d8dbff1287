package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"prompt_trace/internal/models"
)

// pqUniqueViolation is the SQLSTATE for a unique constraint violation.
const pqUniqueViolation = "23505"

// TraceRepository handles trace aggregate database operations. The row
// is shared mutable state between concurrent extraction workers, so all
// writes go through either Insert (which surfaces the creation race as
// ErrTraceExists) or the conditional UpdateIfUnchanged.
type TraceRepository struct {
	db *DB
}

// NewTraceRepository creates a new trace repository
func NewTraceRepository(db *DB) *TraceRepository {
	return &TraceRepository{db: db}
}

const traceColumns = `
	id, tenant_id, project_id, trace_id,
	total_logs, success_count, error_count, total_duration_ms,
	first_log_at, last_log_at, blob_prefix, usage_stats,
	created_at, updated_at
`

// Get retrieves the aggregate for one trace id.
func (r *TraceRepository) Get(ctx context.Context, tenantID, projectID int64, traceID string) (*models.Trace, error) {
	query := `
		SELECT ` + traceColumns + `
		FROM traces
		WHERE tenant_id = $1 AND project_id = $2 AND trace_id = $3
	`

	var trace models.Trace
	err := r.db.conn.GetContext(ctx, &trace, query, tenantID, projectID, traceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}

	return &trace, nil
}

// Insert creates the aggregate row. A concurrent writer beating us to
// the unique (tenant_id, project_id, trace_id) constraint comes back as
// ErrTraceExists so the caller can fall through to an update.
func (r *TraceRepository) Insert(ctx context.Context, trace *models.Trace) error {
	query := `
		INSERT INTO traces (
			tenant_id, project_id, trace_id,
			total_logs, success_count, error_count, total_duration_ms,
			first_log_at, last_log_at, blob_prefix, usage_stats
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query,
		trace.TenantID, trace.ProjectID, trace.TraceID,
		trace.TotalLogs, trace.SuccessCount, trace.ErrorCount, trace.TotalDurationMS,
		trace.FirstLogAt, trace.LastLogAt, trace.BlobPrefix, trace.UsageStats,
	).Scan(&trace.ID, &trace.CreatedAt, &trace.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrTraceExists
		}
		return fmt.Errorf("failed to insert trace: %w", err)
	}

	return nil
}

// UpdateIfUnchanged overwrites the aggregate fields only while the
// stored updated_at still equals expected. It returns false when zero
// rows matched, meaning a concurrent writer updated or deleted the row
// between our read and this write.
func (r *TraceRepository) UpdateIfUnchanged(ctx context.Context, trace *models.Trace, expected time.Time) (bool, error) {
	query := `
		UPDATE traces
		SET total_logs = $5, success_count = $6, error_count = $7,
		    total_duration_ms = $8, first_log_at = $9, last_log_at = $10,
		    blob_prefix = $11, usage_stats = $12, updated_at = now()
		WHERE tenant_id = $1 AND project_id = $2 AND trace_id = $3
		  AND updated_at = $4
		RETURNING id, created_at, updated_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query,
		trace.TenantID, trace.ProjectID, trace.TraceID, expected,
		trace.TotalLogs, trace.SuccessCount, trace.ErrorCount, trace.TotalDurationMS,
		trace.FirstLogAt, trace.LastLogAt, trace.BlobPrefix, trace.UsageStats,
	).Scan(&trace.ID, &trace.CreatedAt, &trace.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to update trace: %w", err)
	}

	return true, nil
}

// TraceListOptions selects a page of a project's traces. SortBy must be
// one of the aggregate columns; anything else falls back to last_log_at.
type TraceListOptions struct {
	SortBy     string
	Descending bool
	Limit      int
	Offset     int
}

var traceSortColumns = map[string]bool{
	"total_logs":        true,
	"success_count":     true,
	"error_count":       true,
	"total_duration_ms": true,
	"first_log_at":      true,
	"last_log_at":       true,
	"created_at":        true,
	"updated_at":        true,
}

// List returns one page of a project's traces plus the total count.
func (r *TraceRepository) List(ctx context.Context, tenantID, projectID int64, opts TraceListOptions) ([]models.Trace, int64, error) {
	sortBy := opts.SortBy
	if !traceSortColumns[sortBy] {
		sortBy = "last_log_at"
	}
	order := "ASC"
	if opts.Descending {
		order = "DESC"
	}

	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT `+traceColumns+`
		FROM traces
		WHERE tenant_id = $1 AND project_id = $2
		ORDER BY %s %s, id ASC
		LIMIT $3 OFFSET $4
	`, sortBy, order)

	var traces []models.Trace
	if err := r.db.conn.SelectContext(ctx, &traces, query, tenantID, projectID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list traces: %w", err)
	}

	var total int64
	countQuery := `SELECT count(*) FROM traces WHERE tenant_id = $1 AND project_id = $2`
	if err := r.db.conn.GetContext(ctx, &total, countQuery, tenantID, projectID); err != nil {
		return nil, 0, fmt.Errorf("failed to count traces: %w", err)
	}

	return traces, total, nil
}

// Delete removes a trace aggregate. The extraction service transparently
// recreates a deleted row on its next pass, so this is safe to expose.
func (r *TraceRepository) Delete(ctx context.Context, tenantID, projectID int64, traceID string) error {
	query := `DELETE FROM traces WHERE tenant_id = $1 AND project_id = $2 AND trace_id = $3`

	if _, err := r.db.conn.ExecContext(ctx, query, tenantID, projectID, traceID); err != nil {
		return fmt.Errorf("failed to delete trace: %w", err)
	}
	return nil
}
