package logging

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompt_trace/internal/blob"
	"prompt_trace/internal/models"
	"prompt_trace/internal/queue"
)

// mockLogStore simulates the execution log repository
type mockLogStore struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[int64]*models.ExecutionLog
	prefixes map[int64]string
}

func newMockLogStore() *mockLogStore {
	return &mockLogStore{
		nextID:   1,
		rows:     make(map[int64]*models.ExecutionLog),
		prefixes: make(map[int64]string),
	}
}

func (m *mockLogStore) Insert(ctx context.Context, log *models.ExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log.ID = m.nextID
	m.nextID++
	log.CreatedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	row := *log
	m.rows[log.ID] = &row
	return nil
}

func (m *mockLogStore) SetBlobPrefix(ctx context.Context, id int64, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixes[id] = prefix
	return nil
}

func testContext() Context {
	return Context{
		TenantID:    7,
		ProjectID:   12,
		PromptID:    34,
		Version:     2,
		TraceParent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}
}

func newTestLogger() (*ExecutionLogger, *mockLogStore, *blob.MemoryStore, *queue.MemoryQueue) {
	store := newMockLogStore()
	blobs := blob.NewMemoryStore()
	q := queue.NewMemoryQueue(queue.DefaultConfig("test"))
	return NewExecutionLogger(store, blobs, q), store, blobs, q
}

func TestExecutionLogger_SuccessFlow(t *testing.T) {
	logger, store, blobs, q := newTestLogger()
	ctx := context.Background()

	logger.Begin(testContext())
	logger.LogInput(map[string]any{"prompt": "hello"})
	logger.LogOutput(map[string]any{"text": "world"})
	logger.LogVariables(map[string]any{"user": map[string]any{"name": "ada"}})

	require.NoError(t, logger.LogSuccess(ctx, 120))

	row := store.rows[1]
	require.NotNil(t, row)
	assert.True(t, row.Success)
	require.NotNil(t, row.DurationMS)
	assert.Equal(t, int64(120), *row.DurationMS)
	require.NotNil(t, row.TraceID)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", *row.TraceID)

	wantPrefix := "logs/7/2026-05-01/12/34/2/1/"
	assert.Equal(t, wantPrefix, store.prefixes[1])

	// Nothing is archived before Finish.
	assert.Empty(t, blobs.Keys("logs/"))

	require.NoError(t, logger.Finish(ctx))

	keys := blobs.Keys(wantPrefix)
	assert.ElementsMatch(t, []string{
		wantPrefix + "metadata.json",
		wantPrefix + "input.json",
		wantPrefix + "output.json",
		wantPrefix + "variables.json",
	}, keys)

	msgs, err := q.DequeueWithTimeout(ctx, 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, queue.Message{TenantID: 7, ProjectID: 12, PromptID: 34, Version: 2, LogID: 1}, msgs[0])
}

func TestExecutionLogger_ErrorFlow(t *testing.T) {
	logger, store, blobs, _ := newTestLogger()
	ctx := context.Background()

	logger.Begin(testContext())
	require.NoError(t, logger.LogError(ctx, 45, "provider timed out"))
	require.NoError(t, logger.Finish(ctx))

	row := store.rows[1]
	assert.False(t, row.Success)
	require.NotNil(t, row.ErrorMessage)
	assert.Equal(t, "provider timed out", *row.ErrorMessage)

	data, err := blobs.Get(ctx, "logs/7/2026-05-01/12/34/2/1/metadata.json")
	require.NoError(t, err)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, false, meta["success"])
	assert.Equal(t, "provider timed out", meta["error"])
	assert.Equal(t, float64(45), meta["duration_ms"])
}

func TestExecutionLogger_LastWriteWins(t *testing.T) {
	logger, _, blobs, _ := newTestLogger()
	ctx := context.Background()

	logger.Begin(testContext())
	logger.LogInput(map[string]any{"attempt": 1})
	logger.LogInput(map[string]any{"attempt": 2})
	require.NoError(t, logger.LogSuccess(ctx, 10))
	require.NoError(t, logger.Finish(ctx))

	data, err := blobs.Get(ctx, "logs/7/2026-05-01/12/34/2/1/input.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"attempt": 2}`, string(data))
}

func TestExecutionLogger_MissingContext(t *testing.T) {
	logger, _, _, _ := newTestLogger()
	ctx := context.Background()

	logger.Begin(Context{TenantID: 7, ProjectID: 12})

	err := logger.LogSuccess(ctx, 10)
	require.ErrorIs(t, err, ErrMissingContext)
}

func TestExecutionLogger_ContextCompletedAtTerminal(t *testing.T) {
	logger, store, _, _ := newTestLogger()
	ctx := context.Background()

	logger.Begin(Context{TenantID: 7})
	logger.SetContext(Context{ProjectID: 12, PromptID: 34, Version: 2})

	require.NoError(t, logger.LogSuccess(ctx, 10))
	assert.Equal(t, int64(12), store.rows[1].ProjectID)
}

func TestExecutionLogger_DoubleTerminal(t *testing.T) {
	logger, _, _, _ := newTestLogger()
	ctx := context.Background()

	logger.Begin(testContext())
	require.NoError(t, logger.LogSuccess(ctx, 10))

	err := logger.LogError(ctx, 20, "late")
	require.ErrorIs(t, err, ErrAlreadyTerminated)
}

func TestExecutionLogger_FinishWithoutTerminal(t *testing.T) {
	logger, _, _, _ := newTestLogger()

	logger.Begin(testContext())
	err := logger.Finish(context.Background())
	require.ErrorIs(t, err, ErrNotTerminated)
}

func TestExecutionLogger_NoTraceParent(t *testing.T) {
	logger, store, _, _ := newTestLogger()
	ctx := context.Background()

	lctx := testContext()
	lctx.TraceParent = ""
	logger.Begin(lctx)
	require.NoError(t, logger.LogSuccess(ctx, 10))

	assert.Nil(t, store.rows[1].TraceParent)
	assert.Nil(t, store.rows[1].TraceID)
}

func TestExecutionLogger_MalformedTraceParentKeepsRaw(t *testing.T) {
	logger, store, _, _ := newTestLogger()
	ctx := context.Background()

	lctx := testContext()
	lctx.TraceParent = "not-a-traceparent"
	logger.Begin(lctx)
	require.NoError(t, logger.LogSuccess(ctx, 10))

	require.NotNil(t, store.rows[1].TraceParent)
	assert.Equal(t, "not-a-traceparent", *store.rows[1].TraceParent)
	assert.Nil(t, store.rows[1].TraceID)
}

func TestExecutionLogger_ReusableAfterFinish(t *testing.T) {
	logger, store, blobs, _ := newTestLogger()
	ctx := context.Background()

	logger.Begin(testContext())
	logger.LogInput(map[string]any{"first": true})
	require.NoError(t, logger.LogSuccess(ctx, 10))
	require.NoError(t, logger.Finish(ctx))

	// Second session must not inherit the first session's payloads.
	logger.Begin(testContext())
	require.NoError(t, logger.LogSuccess(ctx, 20))
	require.NoError(t, logger.Finish(ctx))

	require.Len(t, store.rows, 2)
	secondPrefix := "logs/7/2026-05-01/12/34/2/2/"
	assert.ElementsMatch(t, []string{secondPrefix + "metadata.json"}, blobs.Keys(secondPrefix))
}
