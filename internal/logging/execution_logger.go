package logging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"prompt_trace/internal/blob"
	"prompt_trace/internal/models"
	"prompt_trace/internal/queue"
	"prompt_trace/internal/traceparent"
)

var (
	// ErrMissingContext marks a terminal call made without the required
	// tenant/project/prompt/version identity. This is a caller bug, not
	// a runtime condition, so it is never retried or defaulted.
	ErrMissingContext = errors.New("missing required logging context")

	// ErrNotTerminated is returned by Finish when neither LogSuccess nor
	// LogError has been called for the current session.
	ErrNotTerminated = errors.New("logging session not terminated")

	// ErrAlreadyTerminated is returned by a second terminal call within
	// one session.
	ErrAlreadyTerminated = errors.New("logging session already terminated")
)

// Context identifies the prompt invocation a logging session belongs to.
// TraceParent is the raw trace-context string from the caller, if any.
type Context struct {
	TenantID    int64
	ProjectID   int64
	PromptID    int64
	Version     int64
	TraceParent string
}

// LogStore is the slice of the execution log repository the logger needs.
type LogStore interface {
	Insert(ctx context.Context, log *models.ExecutionLog) error
	SetBlobPrefix(ctx context.Context, id int64, prefix string) error
}

// ExecutionLogger accumulates one invocation's telemetry in memory and
// splits persistence in two: the terminal call (LogSuccess/LogError)
// synchronously writes only the relational row, keeping the request's
// critical path short, while Finish archives the buffered payloads and
// hands one message to the processing queue. A caller that never calls
// Finish leaves the row in place with no blobs and no downstream
// processing, which is the intended degradation.
//
// After Finish the instance is reset and reusable via Begin.
type ExecutionLogger struct {
	logs   LogStore
	blobs  blob.Store
	queue  queue.Queue
	logger *Logger

	mu         sync.Mutex
	lctx       Context
	payloads   map[string]any
	variables  map[string]any
	row        *models.ExecutionLog
	terminated bool
}

// NewExecutionLogger creates an execution logger over the given stores.
func NewExecutionLogger(logs LogStore, blobs blob.Store, q queue.Queue) *ExecutionLogger {
	return &ExecutionLogger{
		logs:     logs,
		blobs:    blobs,
		queue:    q,
		logger:   NewLogger("execution-logger"),
		payloads: make(map[string]any),
	}
}

// Begin starts a fresh logging session, discarding any leftover state.
func (l *ExecutionLogger) Begin(lctx Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lctx = lctx
	l.reset()
}

// SetContext fills in context fields that were not known at Begin time.
// Zero values leave the existing field untouched.
func (l *ExecutionLogger) SetContext(lctx Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lctx.TenantID != 0 {
		l.lctx.TenantID = lctx.TenantID
	}
	if lctx.ProjectID != 0 {
		l.lctx.ProjectID = lctx.ProjectID
	}
	if lctx.PromptID != 0 {
		l.lctx.PromptID = lctx.PromptID
	}
	if lctx.Version != 0 {
		l.lctx.Version = lctx.Version
	}
	if lctx.TraceParent != "" {
		l.lctx.TraceParent = lctx.TraceParent
	}
}

// LogInput records the invocation's input payload. Like all payload
// categories it may be called any number of times; the last write wins.
func (l *ExecutionLogger) LogInput(v any) { l.setPayload(blob.FileInput, v) }

// LogOutput records the invocation's output payload.
func (l *ExecutionLogger) LogOutput(v any) { l.setPayload(blob.FileOutput, v) }

// LogResult records the intermediate result payload.
func (l *ExecutionLogger) LogResult(v any) { l.setPayload(blob.FileResult, v) }

// LogResponse records the final provider response. By convention this is
// an envelope carrying provider, model and the raw usage payload (or
// streaming chunk list); background processing reads it back for
// enrichment.
func (l *ExecutionLogger) LogResponse(v any) { l.setPayload(blob.FileResponse, v) }

// LogVariables records the execution variables that later become the
// searchable field index.
func (l *ExecutionLogger) LogVariables(vars map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.variables = vars
}

func (l *ExecutionLogger) setPayload(category string, v any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payloads[category] = v
}

// LogSuccess terminates the session as successful and persists the
// relational row.
func (l *ExecutionLogger) LogSuccess(ctx context.Context, durationMS int64) error {
	return l.terminate(ctx, true, durationMS, "")
}

// LogError terminates the session as failed and persists the relational
// row with the error message.
func (l *ExecutionLogger) LogError(ctx context.Context, durationMS int64, message string) error {
	return l.terminate(ctx, false, durationMS, message)
}

func (l *ExecutionLogger) terminate(ctx context.Context, success bool, durationMS int64, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.terminated {
		return ErrAlreadyTerminated
	}
	if err := l.validateContext(); err != nil {
		return err
	}

	row := &models.ExecutionLog{
		TenantID:      l.lctx.TenantID,
		ProjectID:     l.lctx.ProjectID,
		PromptID:      l.lctx.PromptID,
		PromptVersion: l.lctx.Version,
		Success:       success,
	}
	if durationMS >= 0 {
		row.DurationMS = &durationMS
	}
	if message != "" {
		row.ErrorMessage = &message
	}
	if l.lctx.TraceParent != "" {
		tp := l.lctx.TraceParent
		row.TraceParent = &tp
		if traceID, ok := traceparent.TraceID(tp); ok {
			row.TraceID = &traceID
		}
	}

	if err := l.logs.Insert(ctx, row); err != nil {
		return fmt.Errorf("failed to persist execution log: %w", err)
	}

	// The path embeds the generated id, hence insert first, patch after.
	prefix := blob.LogPrefix(row.TenantID, row.CreatedAt, row.ProjectID, row.PromptID, row.PromptVersion, row.ID)
	if err := l.logs.SetBlobPrefix(ctx, row.ID, prefix); err != nil {
		return fmt.Errorf("failed to record blob prefix: %w", err)
	}
	row.BlobPrefix = &prefix

	l.row = row
	l.terminated = true
	return nil
}

func (l *ExecutionLogger) validateContext() error {
	switch {
	case l.lctx.TenantID == 0:
		return fmt.Errorf("%w: tenant id", ErrMissingContext)
	case l.lctx.ProjectID == 0:
		return fmt.Errorf("%w: project id", ErrMissingContext)
	case l.lctx.PromptID == 0:
		return fmt.Errorf("%w: prompt id", ErrMissingContext)
	case l.lctx.Version == 0:
		return fmt.Errorf("%w: prompt version", ErrMissingContext)
	}
	return nil
}

// sessionMetadata is the content of the unconditional metadata.json.
type sessionMetadata struct {
	Success    bool      `json:"success"`
	DurationMS *int64    `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	LoggedAt   time.Time `json:"logged_at"`
}

// Finish archives every buffered payload, enqueues exactly one
// processing message and resets the session. The relational row was
// already written by the terminal call, so everything here is off the
// request's critical path and safe to run in a post-response
// continuation.
func (l *ExecutionLogger) Finish(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.terminated || l.row == nil {
		return ErrNotTerminated
	}

	row := l.row
	prefix := *row.BlobPrefix

	meta := sessionMetadata{
		Success:    row.Success,
		DurationMS: row.DurationMS,
		LoggedAt:   row.CreatedAt,
	}
	if row.ErrorMessage != nil {
		meta.Error = *row.ErrorMessage
	}
	if err := l.putJSON(ctx, prefix+blob.FileMetadata, meta); err != nil {
		return err
	}

	for category, payload := range l.payloads {
		if err := l.putJSON(ctx, prefix+category, payload); err != nil {
			return err
		}
	}
	if len(l.variables) > 0 {
		if err := l.putJSON(ctx, prefix+blob.FileVariables, l.variables); err != nil {
			return err
		}
	}

	msg := queue.Message{
		TenantID:  row.TenantID,
		ProjectID: row.ProjectID,
		PromptID:  row.PromptID,
		Version:   row.PromptVersion,
		LogID:     row.ID,
	}
	if err := l.queue.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue processing message: %w", err)
	}

	l.logger.Debug("Session archived", "log_id", row.ID, "prefix", prefix)
	l.reset()
	return nil
}

func (l *ExecutionLogger) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := l.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to archive %s: %w", key, err)
	}
	return nil
}

// reset clears buffered state; callers hold the mutex.
func (l *ExecutionLogger) reset() {
	l.payloads = make(map[string]any)
	l.variables = nil
	l.row = nil
	l.terminated = false
}
