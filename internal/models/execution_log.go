package models

import "time"

// ExecutionLog is one row per prompt invocation attempt.
//
// Success, ErrorMessage and DurationMS are set exactly once when the
// invocation terminates and never change afterwards. Provider, Model and
// Usage start out null and are filled in at most once by background
// processing; a row that never gets enriched stays null, which is fine.
type ExecutionLog struct {
	ID            int64     `db:"id" json:"id"`
	TenantID      int64     `db:"tenant_id" json:"tenant_id"`
	ProjectID     int64     `db:"project_id" json:"project_id"`
	PromptID      int64     `db:"prompt_id" json:"prompt_id"`
	PromptVersion int64     `db:"prompt_version" json:"prompt_version"`
	Success       bool      `db:"success" json:"success"`
	ErrorMessage  *string   `db:"error_message" json:"error_message,omitempty"`
	DurationMS    *int64    `db:"duration_ms" json:"duration_ms,omitempty"`
	BlobPrefix    *string   `db:"blob_prefix" json:"blob_prefix,omitempty"`
	TraceParent   *string   `db:"trace_parent" json:"trace_parent,omitempty"`
	TraceID       *string   `db:"trace_id" json:"trace_id,omitempty"`
	Provider      *string   `db:"provider" json:"provider,omitempty"`
	Model         *string   `db:"model" json:"model,omitempty"`
	Usage         JSONB     `db:"usage" json:"usage,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
