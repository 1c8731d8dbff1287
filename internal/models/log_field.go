package models

import "time"

// LogField is one searchable (path, value) pair flattened out of an
// execution log's variables payload. LogCreatedAt copies the parent
// log's creation time so time-bounded searches never need a join.
type LogField struct {
	ID           int64     `db:"id" json:"id"`
	TenantID     int64     `db:"tenant_id" json:"tenant_id"`
	ProjectID    int64     `db:"project_id" json:"project_id"`
	PromptID     int64     `db:"prompt_id" json:"prompt_id"`
	LogID        int64     `db:"log_id" json:"log_id"`
	Path         string    `db:"path" json:"path"`
	Value        string    `db:"value" json:"value"`
	LogCreatedAt time.Time `db:"log_created_at" json:"log_created_at"`
}
