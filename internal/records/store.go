package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HerbHall/chronicle/pkg/models"
)

// Filter narrows and paginates List queries. The zero value matches all
// records, newest first.
type Filter struct {
	Field        string // JSON field name to match (with Equals).
	Equals       string // Required field value; ignored when Field is empty.
	CreatedSince time.Time
	CreatedUntil time.Time
	Page         int // 1-based; 0 means first page.
	PerPage      int // 0 means the store default.
}

// Store provides database access for the records table. The handle is
// passed in explicitly; there is no package-level instance.
type Store struct {
	db             *sql.DB
	defaultPerPage int
	maxPerPage     int
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB, defaultPerPage, maxPerPage int) *Store {
	if defaultPerPage <= 0 {
		defaultPerPage = 50
	}
	if maxPerPage <= 0 {
		maxPerPage = 500
	}
	return &Store{db: db, defaultPerPage: defaultPerPage, maxPerPage: maxPerPage}
}

// Insert writes a new record and returns the identifier SQLite assigned.
// Identifiers are allocated by the database only and are never reused for
// the lifetime of the file.
func (s *Store) Insert(ctx context.Context, fields map[string]any) (int64, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	blob, err := json.Marshal(fields)
	if err != nil {
		return 0, storageErr("insert", fmt.Errorf("marshal fields: %w", err))
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (fields, created_at, updated_at) VALUES (?, ?, ?)`,
		string(blob), now, now,
	)
	if err != nil {
		return 0, storageErr("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("insert", err)
	}
	return id, nil
}

// Get returns the record with the given identifier, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fields, created_at, updated_at FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return rec, nil
}

// Update merges the given fields into the existing record's JSON object
// inside a single transaction. A field whose value is nil removes the key.
// Returns the updated record, or ErrNotFound if the identifier is absent.
func (s *Store) Update(ctx context.Context, id int64, fields map[string]any) (*models.Record, error) {
	var updated *models.Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT id, fields, created_at, updated_at FROM records WHERE id = ?`, id)
		rec, err := scanRecord(row)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return storageErr("update", err)
		}

		for k, v := range fields {
			if v == nil {
				delete(rec.Fields, k)
				continue
			}
			rec.Fields[k] = v
		}

		blob, err := json.Marshal(rec.Fields)
		if err != nil {
			return storageErr("update", fmt.Errorf("marshal fields: %w", err))
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET fields = ?, updated_at = ? WHERE id = ?`,
			string(blob), now.Format(time.RFC3339Nano), id,
		); err != nil {
			return storageErr("update", err)
		}
		rec.UpdatedAt = now
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record. Idempotent: deleting an absent identifier
// succeeds without error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return storageErr("delete", err)
	}
	return nil
}

// List returns one page of records matching the filter plus the total
// match count. Each call runs a fresh query; results are newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]models.Record, int, error) {
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = s.defaultPerPage
	}
	if perPage > s.maxPerPage {
		perPage = s.maxPerPage
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	where := "1=1"
	args := []any{}
	if f.Field != "" {
		where += " AND json_extract(fields, '$.' || ?) = ?"
		args = append(args, f.Field, f.Equals)
	}
	if !f.CreatedSince.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, f.CreatedSince.UTC().Format(time.RFC3339Nano))
	}
	if !f.CreatedUntil.IsZero() {
		where += " AND created_at <= ?"
		args = append(args, f.CreatedUntil.UTC().Format(time.RFC3339Nano))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, storageErr("list", err)
	}

	query := "SELECT id, fields, created_at, updated_at FROM records WHERE " + where +
		" ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, storageErr("list", err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, storageErr("list", err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("list", err)
	}
	return result, total, nil
}

// Stats summarizes the records table.
func (s *Store) Stats(ctx context.Context) (*models.RecordStats, error) {
	var stats models.RecordStats
	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM records`,
	).Scan(&stats.Total, &oldest, &newest)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	if t, ok := parseTimePtr(oldest); ok {
		stats.Oldest = t
	}
	if t, ok := parseTimePtr(newest); ok {
		stats.Newest = t
	}
	return &stats, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*models.Record, error) {
	var rec models.Record
	var blob, createdAt, updatedAt string
	if err := sc.Scan(&rec.ID, &blob, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(blob), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode fields for record %d: %w", rec.ID, err)
	}
	if rec.Fields == nil {
		rec.Fields = map[string]any{}
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(ns sql.NullString) (*time.Time, bool) {
	if !ns.Valid || ns.String == "" {
		return nil, false
	}
	t := parseTime(ns.String)
	return &t, true
}
