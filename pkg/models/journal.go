package models

import (
	"encoding/json"
	"time"
)

// JournalEntry is one line of the activity journal: something the system
// did (a record changed, a generation completed), when, and by whom.
type JournalEntry struct {
	ID           string          `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventType    string          `json:"event_type" example:"records.record.created"`
	Summary      string          `json:"summary" example:"Record 1 created with 2 fields"`
	Details      json.RawMessage `json:"details,omitempty"`
	RecordID     *int64          `json:"record_id,omitempty" example:"1"`
	SourceModule string          `json:"source_module" example:"records"`
	CreatedAt    time.Time       `json:"created_at" example:"2026-01-15T10:30:00Z"`
}

// JournalStats summarizes journal contents for the stats endpoint.
type JournalStats struct {
	TotalEntries  int            `json:"total_entries" example:"128"`
	EntriesByType map[string]int `json:"entries_by_type"`
	OldestEntry   *time.Time     `json:"oldest_entry,omitempty"`
	LatestEntry   *time.Time     `json:"latest_entry,omitempty"`
}

// GenerationResult is the journal-facing payload of a completed LLM call.
type GenerationResult struct {
	Model      string        `json:"model" example:"qwen2.5:32b"`
	Prompt     string        `json:"prompt"`
	Output     string        `json:"output"`
	Streamed   bool          `json:"streamed" example:"false"`
	Duration   time.Duration `json:"duration"`
	PromptTok  int           `json:"prompt_tokens" example:"12"`
	OutputTok  int           `json:"completion_tokens" example:"40"`
	RecordID   *int64        `json:"record_id,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}
