package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/chronicle/pkg/models"
)

// Store provides database operations for the journal module.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListFilter controls pagination and filtering for journal queries.
type ListFilter struct {
	Page      int
	PerPage   int
	EventType string
	Since     *time.Time
	Until     *time.Time
}

const entryColumns = "id, event_type, summary, details, record_id, source_module, created_at"

// SaveEntry inserts a new journal entry.
func (s *Store) SaveEntry(ctx context.Context, entry models.JournalEntry) error {
	details := entry.Details
	if details == nil {
		details = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EventType, entry.Summary, string(details),
		entry.RecordID, entry.SourceModule,
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// ListEntries returns a paginated list of journal entries with optional filters.
func (s *Store) ListEntries(ctx context.Context, filter ListFilter) ([]models.JournalEntry, int, error) {
	if filter.PerPage <= 0 {
		filter.PerPage = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.PerPage

	where, args := buildWhere(filter)

	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM journal_entries WHERE "+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count journal entries: %w", err)
	}

	queryArgs := make([]any, 0, len(args)+2)
	queryArgs = append(queryArgs, args...)
	queryArgs = append(queryArgs, filter.PerPage, offset)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM journal_entries WHERE "+where+
			" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.JournalEntry, 0)
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		entries = append(entries, *entry)
	}
	return entries, total, rows.Err()
}

// RecentEntries returns the newest entries, newest first.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	entries, _, err := s.ListEntries(ctx, ListFilter{Page: 1, PerPage: limit})
	return entries, err
}

// ListEntriesBetween returns all entries in the time range, oldest first.
func (s *Store) ListEntriesBetween(ctx context.Context, since, until time.Time) ([]models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+` FROM journal_entries
		 WHERE created_at >= ? AND created_at <= ?
		 ORDER BY created_at ASC`,
		since.UTC().Format(time.RFC3339),
		until.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("list entries between: %w", err)
	}
	defer rows.Close()

	var entries []models.JournalEntry
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// GetStats returns aggregate statistics about the journal.
func (s *Store) GetStats(ctx context.Context) (*models.JournalStats, error) {
	stats := &models.JournalStats{
		EntriesByType: make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM journal_entries`,
	).Scan(&stats.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("count total: %w", err)
	}

	typeRows, err := s.db.QueryContext(ctx,
		`SELECT event_type, COUNT(*) FROM journal_entries GROUP BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var et string
		var cnt int
		if err := typeRows.Scan(&et, &cnt); err != nil {
			return nil, fmt.Errorf("scan type row: %w", err)
		}
		stats.EntriesByType[et] = cnt
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("type rows: %w", err)
	}

	var oldest, latest sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(created_at), MAX(created_at) FROM journal_entries`,
	).Scan(&oldest, &latest)
	if err != nil {
		return nil, fmt.Errorf("entry bounds: %w", err)
	}
	if oldest.Valid {
		if t, perr := time.Parse(time.RFC3339, oldest.String); perr == nil {
			stats.OldestEntry = &t
		}
	}
	if latest.Valid {
		if t, perr := time.Parse(time.RFC3339, latest.String); perr == nil {
			stats.LatestEntry = &t
		}
	}

	return stats, nil
}

// DeleteOlderThan removes entries created before the cutoff and reports
// how many were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM journal_entries WHERE created_at < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("delete old entries: %w", err)
	}
	return res.RowsAffected()
}

// buildWhere constructs a WHERE clause from the filter.
func buildWhere(filter ListFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}
	if filter.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, filter.Until.UTC().Format(time.RFC3339))
	}

	return strings.Join(clauses, " AND "), args
}

// scanEntry scans a *sql.Rows row into a JournalEntry.
func scanEntry(rows *sql.Rows) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	var details string
	var createdAt string
	var recordID sql.NullInt64

	err := rows.Scan(
		&entry.ID, &entry.EventType, &entry.Summary, &details,
		&recordID, &entry.SourceModule, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan journal entry: %w", err)
	}

	entry.Details = json.RawMessage(details)
	if recordID.Valid {
		entry.RecordID = &recordID.Int64
	}
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &entry, nil
}
