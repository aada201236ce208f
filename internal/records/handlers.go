package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/HerbHall/chronicle/pkg/models"
	"github.com/HerbHall/chronicle/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/", Handler: m.handleInsert},
		{Method: "GET", Path: "/", Handler: m.handleList},
		{Method: "GET", Path: "/stats", Handler: m.handleStats},
		{Method: "GET", Path: "/{id}", Handler: m.handleGet},
		{Method: "PATCH", Path: "/{id}", Handler: m.handleUpdate},
		{Method: "DELETE", Path: "/{id}", Handler: m.handleDelete},
	}
}

// insertRequest is the body for POST / and PATCH /{id}.
// Unknown top-level keys are rejected; the fields object itself is free-form.
type insertRequest struct {
	Fields map[string]any `json:"fields"`
}

// storeReady writes a 503 problem and returns false when the module has no
// database (Init ran without a store).
func (m *Module) storeReady(w http.ResponseWriter) bool {
	if m.store == nil {
		recWriteError(w, http.StatusServiceUnavailable, "records store not available")
		return false
	}
	return true
}

// handleInsert creates a new record and returns its assigned identifier.
func (m *Module) handleInsert(w http.ResponseWriter, r *http.Request) {
	if !m.storeReady(w) {
		return
	}
	var req insertRequest
	if !m.decodeBody(w, r, &req) {
		return
	}

	id, err := m.store.Insert(r.Context(), req.Fields)
	if err != nil {
		m.logger.Warn("insert failed", zap.Error(err))
		recWriteError(w, http.StatusInternalServerError, "failed to insert record")
		return
	}
	m.publishEvent(r.Context(), EventRecordCreated, map[string]any{"id": id, "fields": len(req.Fields)})

	w.Header().Set("Location", fmt.Sprintf("/api/v1/records/%d", id))
	recWriteJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// handleGet returns a single record by identifier.
func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	if !m.storeReady(w) {
		return
	}
	id, ok := recPathID(w, r)
	if !ok {
		return
	}

	rec, err := m.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		recWriteError(w, http.StatusNotFound, fmt.Sprintf("record %d not found", id))
		return
	}
	if err != nil {
		m.logger.Warn("get failed", zap.Int64("id", id), zap.Error(err))
		recWriteError(w, http.StatusInternalServerError, "failed to get record")
		return
	}
	recWriteJSON(w, http.StatusOK, rec)
}

// handleUpdate merges fields into an existing record.
func (m *Module) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !m.storeReady(w) {
		return
	}
	id, ok := recPathID(w, r)
	if !ok {
		return
	}

	var req insertRequest
	if !m.decodeBody(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 {
		recWriteError(w, http.StatusBadRequest, "fields must not be empty")
		return
	}

	rec, err := m.store.Update(r.Context(), id, req.Fields)
	if errors.Is(err, ErrNotFound) {
		recWriteError(w, http.StatusNotFound, fmt.Sprintf("record %d not found", id))
		return
	}
	if err != nil {
		m.logger.Warn("update failed", zap.Int64("id", id), zap.Error(err))
		recWriteError(w, http.StatusInternalServerError, "failed to update record")
		return
	}
	m.publishEvent(r.Context(), EventRecordUpdated, map[string]any{"id": id, "fields": len(req.Fields)})
	recWriteJSON(w, http.StatusOK, rec)
}

// handleDelete removes a record. Always 204: deletion is idempotent.
func (m *Module) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !m.storeReady(w) {
		return
	}
	id, ok := recPathID(w, r)
	if !ok {
		return
	}

	if err := m.store.Delete(r.Context(), id); err != nil {
		m.logger.Warn("delete failed", zap.Int64("id", id), zap.Error(err))
		recWriteError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	m.publishEvent(r.Context(), EventRecordDeleted, map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// handleList returns a filtered, paginated page of records.
func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	if !m.storeReady(w) {
		return
	}
	q := r.URL.Query()
	f := Filter{
		Field:   q.Get("field"),
		Equals:  q.Get("equals"),
		Page:    recQueryInt(r, "page", 1),
		PerPage: recQueryInt(r, "per_page", 0),
	}
	if f.Field != "" && !q.Has("equals") {
		recWriteError(w, http.StatusBadRequest, "field filter requires equals")
		return
	}
	if v := q.Get("created_since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			recWriteError(w, http.StatusBadRequest, "created_since must be RFC 3339")
			return
		}
		f.CreatedSince = t
	}
	if v := q.Get("created_until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			recWriteError(w, http.StatusBadRequest, "created_until must be RFC 3339")
			return
		}
		f.CreatedUntil = t
	}

	recs, total, err := m.store.List(r.Context(), f)
	if err != nil {
		m.logger.Warn("list failed", zap.Error(err))
		recWriteError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if recs == nil {
		recs = []models.Record{}
	}
	recWriteJSON(w, http.StatusOK, map[string]any{
		"items": recs,
		"total": total,
	})
}

// handleStats summarizes the records table.
func (m *Module) handleStats(w http.ResponseWriter, r *http.Request) {
	if !m.storeReady(w) {
		return
	}
	stats, err := m.store.Stats(r.Context())
	if err != nil {
		m.logger.Warn("stats failed", zap.Error(err))
		recWriteError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	recWriteJSON(w, http.StatusOK, stats)
}

// decodeBody decodes a JSON request body strictly: unknown top-level keys
// are rejected with 400 rather than silently dropped.
func (m *Module) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		recWriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func recPathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		recWriteError(w, http.StatusBadRequest, "record ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func recQueryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// recWriteJSON writes a JSON response with the given status.
func recWriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// recWriteError writes an RFC 7807 problem response.
func recWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://chronicle.dev/problems/" + problemSlug(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

func problemSlug(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not-found"
	case http.StatusBadRequest:
		return "bad-request"
	default:
		return "internal-error"
	}
}
