package journal

import (
	"encoding/json"
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
		{Method: "GET", Path: "/entries", Handler: m.handleListEntries},
		{Method: "GET", Path: "/stats", Handler: m.handleStats},
		{Method: "GET", Path: "/export", Handler: m.handleExport},
	}
}

// ListResponse is the paginated response for GET /entries.
type ListResponse struct {
	Entries []models.JournalEntry `json:"entries"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

// storeReady writes a 503 problem and returns false when the module has
// no database.
func (m *Module) storeReady(w http.ResponseWriter) bool {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "journal store not available")
		return false
	}
	return true
}

// handleListEntries returns a paginated list of journal entries.
func (m *Module) handleListEntries(w http.ResponseWriter, r *http.Request) {
	if !m.storeReady(w) {
		return
	}

	filter := ListFilter{
		Page:      queryInt(r, "page", 1),
		PerPage:   queryInt(r, "per_page", 50),
		EventType: r.URL.Query().Get("event_type"),
	}
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = &t
	}
	if s := r.URL.Query().Get("until"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC 3339")
			return
		}
		filter.Until = &t
	}

	entries, total, err := m.store.ListEntries(r.Context(), filter)
	if err != nil {
		m.logger.Error("failed to list journal entries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list journal entries")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Entries: entries,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	})
}

// handleStats returns summary statistics about the journal.
func (m *Module) handleStats(w http.ResponseWriter, r *http.Request) {
	if !m.storeReady(w) {
		return
	}

	stats, err := m.store.GetStats(r.Context())
	if err != nil {
		m.logger.Error("failed to get journal stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get journal stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport returns a markdown export of recent activity.
// The window comes from ?range (7d default) or explicit since/until.
func (m *Module) handleExport(w http.ResponseWriter, r *http.Request) {
	if !m.storeReady(w) {
		return
	}

	now := time.Now().UTC()
	var since, until time.Time

	if s := r.URL.Query().Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			since = t
		}
	}
	if s := r.URL.Query().Get("until"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			until = t
		}
	}
	if since.IsZero() {
		dur := ParseDuration(r.URL.Query().Get("range"), 7*24*time.Hour)
		since = now.Add(-dur)
	}
	if until.IsZero() {
		until = now
	}

	entries, err := m.store.ListEntriesBetween(r.Context(), since, until)
	if err != nil {
		m.logger.Error("failed to list entries for export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export journal")
		return
	}

	md := GenerateMarkdown(entries)

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="journal.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://chronicle.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
