// Package roles defines typed contracts for plugin roles.
// Plugins that fill a role (declared via PluginInfo.Roles) should implement
// the corresponding interface so callers can use type-safe access via
// PluginResolver.ResolveByRole followed by a type assertion.
//
// This package is Apache 2.0 licensed, part of the public plugin SDK.
package roles

import (
	"context"

	"github.com/HerbHall/chronicle/pkg/llm"
	"github.com/HerbHall/chronicle/pkg/models"
)

// Role name constants match the strings used in PluginInfo.Roles.
const (
	RoleRecordStore = "record_store"
	RoleLLM         = "llm"
	RoleJournal     = "journal"
)

// RecordProvider is implemented by plugins that persist application records.
// Resolve via PluginResolver.ResolveByRole(RoleRecordStore) then type-assert.
type RecordProvider interface {
	// Record returns a single record by its identifier.
	Record(ctx context.Context, id int64) (*models.Record, error)

	// SearchRecords returns up to limit records whose named field equals
	// the given value. An empty field returns the newest records.
	SearchRecords(ctx context.Context, field, equals string, limit int) ([]models.Record, error)

	// InsertRecord stores a new record and returns its assigned identifier.
	InsertRecord(ctx context.Context, fields map[string]any) (int64, error)
}

// LLMProvider is implemented by plugins that provide LLM capabilities.
// Resolve via PluginResolver.ResolveByRole(RoleLLM) then type-assert.
type LLMProvider interface {
	// Provider returns the underlying LLM provider interface.
	Provider() llm.Provider
}

// JournalProvider is implemented by plugins that keep the activity journal.
// Resolve via PluginResolver.ResolveByRole(RoleJournal) then type-assert.
type JournalProvider interface {
	// RecentEntries returns the newest journal entries, newest first.
	RecentEntries(ctx context.Context, limit int) ([]models.JournalEntry, error)
}
