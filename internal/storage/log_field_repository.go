package storage

import (
	"context"
	"fmt"
	"strings"

	"prompt_trace/internal/models"
)

// LogFieldRepository handles search-index rows flattened out of an
// execution log's variables payload.
type LogFieldRepository struct {
	db *DB
}

// NewLogFieldRepository creates a new log field repository
func NewLogFieldRepository(db *DB) *LogFieldRepository {
	return &LogFieldRepository{db: db}
}

// InsertBatch writes all of a log's fields in one statement. Reindexing
// a redelivered message replaces the previous rows instead of piling up
// duplicates, so the delete runs in the same transaction.
func (r *LogFieldRepository) InsertBatch(ctx context.Context, fields []models.LogField) error {
	if len(fields) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := `DELETE FROM log_fields WHERE tenant_id = $1 AND log_id = $2`
	if _, err := tx.ExecContext(ctx, deleteQuery, fields[0].TenantID, fields[0].LogID); err != nil {
		return fmt.Errorf("failed to clear previous fields: %w", err)
	}

	var (
		placeholders = make([]string, 0, len(fields))
		args         = make([]any, 0, len(fields)*7)
	)
	for i, f := range fields {
		base := i * 7
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args, f.TenantID, f.ProjectID, f.PromptID, f.LogID, f.Path, f.Value, f.LogCreatedAt)
	}

	query := `
		INSERT INTO log_fields (tenant_id, project_id, prompt_id, log_id, path, value, log_created_at)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert log fields: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit log fields: %w", err)
	}

	return nil
}

// ListByLog returns a log's indexed fields in insertion order.
func (r *LogFieldRepository) ListByLog(ctx context.Context, tenantID, logID int64) ([]models.LogField, error) {
	query := `
		SELECT id, tenant_id, project_id, prompt_id, log_id, path, value, log_created_at
		FROM log_fields
		WHERE tenant_id = $1 AND log_id = $2
		ORDER BY id ASC
	`

	var fields []models.LogField
	if err := r.db.conn.SelectContext(ctx, &fields, query, tenantID, logID); err != nil {
		return nil, fmt.Errorf("failed to list log fields: %w", err)
	}

	return fields, nil
}
