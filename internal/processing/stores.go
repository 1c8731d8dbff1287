package processing

import (
	"context"
	"time"

	"prompt_trace/internal/models"
)

// The processing services consume their stores through narrow
// interfaces so workers can run against the sqlx repositories in
// production and hand-written fakes in tests. All implementations must
// be safe for concurrent use.

// LogStore is the slice of the execution log repository the pipeline
// reads and enriches.
type LogStore interface {
	GetByID(ctx context.Context, tenantID, projectID, id int64) (*models.ExecutionLog, error)
	SetProviderUsage(ctx context.Context, id int64, provider, model string, usage models.JSONB) error
	ListByTrace(ctx context.Context, tenantID, projectID int64, traceID string) ([]models.ExecutionLog, error)
}

// FieldStore receives the flattened search-index rows.
type FieldStore interface {
	InsertBatch(ctx context.Context, fields []models.LogField) error
}

// TraceStore is the shared aggregate row. Insert must surface the
// creation race as storage.ErrTraceExists; UpdateIfUnchanged must
// report zero-row updates as ok=false rather than an error.
type TraceStore interface {
	Get(ctx context.Context, tenantID, projectID int64, traceID string) (*models.Trace, error)
	Insert(ctx context.Context, trace *models.Trace) error
	UpdateIfUnchanged(ctx context.Context, trace *models.Trace, expected time.Time) (bool, error)
}
