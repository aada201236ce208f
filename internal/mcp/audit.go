package mcp

import (
	"context"
	"database/sql"
	"time"
)

// AuditEntry records a single tool invocation. Outcome is "ok" for
// successful calls and the error text otherwise.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Tool       string    `json:"tool"`
	Arguments  string    `json:"arguments"`
	Outcome    string    `json:"outcome"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditStore handles persistence for tool call audit records.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore creates an AuditStore backed by the given database.
// The caller is responsible for running migrations via deps.Store.Migrate
// before passing deps.Store.DB() here.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Insert records an audit entry.
func (s *AuditStore) Insert(ctx context.Context, entry AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mcp_audit (tool, arguments, outcome, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Tool,
		entry.Arguments,
		entry.Outcome,
		entry.DurationMs,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// List returns audit entries with optional filtering by tool name,
// newest first, along with the total row count for the filter.
func (s *AuditStore) List(ctx context.Context, tool string, limit, offset int) ([]AuditEntry, int, error) {
	countQuery := "SELECT COUNT(*) FROM mcp_audit"
	var filterArgs []any
	if tool != "" {
		countQuery += " WHERE tool = ?"
		filterArgs = append(filterArgs, tool)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, filterArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT id, tool, arguments, outcome, duration_ms, created_at FROM mcp_audit"
	if tool != "" {
		query += " WHERE tool = ?"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	dataArgs := make([]any, 0, len(filterArgs)+2)
	dataArgs = append(dataArgs, filterArgs...)
	dataArgs = append(dataArgs, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0, limit)
	for rows.Next() {
		var e AuditEntry
		var created string
		if err := rows.Scan(&e.ID, &e.Tool, &e.Arguments, &e.Outcome, &e.DurationMs, &created); err != nil {
			return nil, 0, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}
