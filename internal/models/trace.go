package models

import "time"

// Trace is the consolidated aggregate for one (tenant, project, trace id)
// tuple. Every field except the identity columns is a full recomputation
// over the execution logs sharing the trace id; nothing in here is ever
// incremented in place.
//
// UpdatedAt doubles as the optimistic-concurrency version token: writers
// only commit when the stored value still matches the one they read.
type Trace struct {
	ID              int64     `db:"id" json:"id"`
	TenantID        int64     `db:"tenant_id" json:"tenant_id"`
	ProjectID       int64     `db:"project_id" json:"project_id"`
	TraceID         string    `db:"trace_id" json:"trace_id"`
	TotalLogs       int64     `db:"total_logs" json:"total_logs"`
	SuccessCount    int64     `db:"success_count" json:"success_count"`
	ErrorCount      int64     `db:"error_count" json:"error_count"`
	TotalDurationMS int64     `db:"total_duration_ms" json:"total_duration_ms"`
	FirstLogAt      time.Time `db:"first_log_at" json:"first_log_at"`
	LastLogAt       time.Time `db:"last_log_at" json:"last_log_at"`
	BlobPrefix      string    `db:"blob_prefix" json:"blob_prefix"`
	UsageStats      JSONB     `db:"usage_stats" json:"usage_stats,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
