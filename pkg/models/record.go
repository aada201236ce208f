package models

import "time"

// Record is a stored application row: a store-assigned integer identifier
// plus a free-form JSON object of named fields. The store is the sole
// owner of identifier allocation; an identifier, once assigned, never
// changes and is never reassigned to another record.
type Record struct {
	ID        int64          `json:"id" example:"1"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at" example:"2026-01-15T10:30:00Z"`
	UpdatedAt time.Time      `json:"updated_at" example:"2026-01-15T10:30:00Z"`
}

// RecordStats summarizes the records table.
type RecordStats struct {
	Total  int        `json:"total" example:"42"`
	Oldest *time.Time `json:"oldest,omitempty"`
	Newest *time.Time `json:"newest,omitempty"`
}
