package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"prompt_trace/internal/models"
	"prompt_trace/internal/storage"
	"prompt_trace/internal/traceparent"
	"prompt_trace/internal/utils"
)

// TraceReader is the slice of the trace repository the read API needs.
type TraceReader interface {
	Get(ctx context.Context, tenantID, projectID int64, traceID string) (*models.Trace, error)
	List(ctx context.Context, tenantID, projectID int64, opts storage.TraceListOptions) ([]models.Trace, int64, error)
}

// LogReader lists a trace's execution logs in arrival order.
type LogReader interface {
	ListByTrace(ctx context.Context, tenantID, projectID int64, traceID string) ([]models.ExecutionLog, error)
}

// TracesHandler serves the read-only trace endpoints
type TracesHandler struct {
	traces TraceReader
	logs   LogReader
}

// NewTracesHandler creates a new traces handler
func NewTracesHandler(traces TraceReader, logs LogReader) *TracesHandler {
	return &TracesHandler{traces: traces, logs: logs}
}

// ListTracesResponse is the paginated trace listing
type ListTracesResponse struct {
	Traces []models.Trace `json:"traces"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// SpanInfo is the decoded form of a log's stored traceparent. It is
// re-derived on read; only the raw header is persisted.
type SpanInfo struct {
	Version    string `json:"version"`
	TraceID    string `json:"trace_id"`
	SpanID     string `json:"span_id"`
	TraceFlags string `json:"trace_flags"`
	Sampled    bool   `json:"sampled"`
}

// TraceLogEntry is one execution log within a trace detail response,
// with span info when the stored traceparent decodes cleanly.
type TraceLogEntry struct {
	models.ExecutionLog
	Span *SpanInfo `json:"span,omitempty"`
}

// TraceDetailResponse joins the aggregate row with its logs
type TraceDetailResponse struct {
	Trace *models.Trace   `json:"trace"`
	Logs  []TraceLogEntry `json:"logs"`
}

// List handles GET /v1/tenants/{tenant_id}/projects/{project_id}/traces
func (h *TracesHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := scopeFromPath(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	opts := storage.TraceListOptions{
		SortBy:     query.Get("sort_by"),
		Descending: query.Get("order") != "asc",
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		opts.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		opts.Offset = offset
	}

	traces, total, err := h.traces.List(r.Context(), tenantID, projectID, opts)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list traces")
		return
	}
	if traces == nil {
		traces = []models.Trace{}
	}

	utils.RespondWithJSON(w, http.StatusOK, ListTracesResponse{
		Traces: traces,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// Get handles GET /v1/tenants/{tenant_id}/projects/{project_id}/traces/{trace_id}
func (h *TracesHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, projectID, ok := scopeFromPath(w, r)
	if !ok {
		return
	}

	traceID := r.PathValue("trace_id")
	if traceID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Trace ID is required")
		return
	}

	trace, err := h.traces.Get(r.Context(), tenantID, projectID, traceID)
	if errors.Is(err, storage.ErrTraceNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Trace not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load trace")
		return
	}

	logs, err := h.logs.ListByTrace(r.Context(), tenantID, projectID, traceID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load trace logs")
		return
	}

	entries := make([]TraceLogEntry, 0, len(logs))
	for _, log := range logs {
		entry := TraceLogEntry{ExecutionLog: log}
		if log.TraceParent != nil {
			if tp, valid := traceparent.Parse(*log.TraceParent); valid {
				entry.Span = &SpanInfo{
					Version:    tp.Version,
					TraceID:    tp.TraceID,
					SpanID:     tp.SpanID,
					TraceFlags: tp.TraceFlags,
					Sampled:    tp.Sampled,
				}
			}
		}
		entries = append(entries, entry)
	}

	utils.RespondWithJSON(w, http.StatusOK, TraceDetailResponse{Trace: trace, Logs: entries})
}

// scopeFromPath parses the tenant and project path segments, writing a
// 400 on malformed values.
func scopeFromPath(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	tenantID, err := strconv.ParseInt(r.PathValue("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid tenant ID")
		return 0, 0, false
	}

	projectID, err := strconv.ParseInt(r.PathValue("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid project ID")
		return 0, 0, false
	}

	return tenantID, projectID, true
}
