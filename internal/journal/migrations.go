package journal

import (
	"database/sql"

	"github.com/HerbHall/chronicle/pkg/plugin"
)

// migrations returns the journal module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create journal_entries table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS journal_entries (
						id            TEXT PRIMARY KEY,
						event_type    TEXT NOT NULL,
						summary       TEXT NOT NULL,
						details       TEXT NOT NULL DEFAULT '{}',
						record_id     INTEGER,
						source_module TEXT NOT NULL DEFAULT '',
						created_at    TEXT NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_journal_created_at ON journal_entries(created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_journal_event_type ON journal_entries(event_type)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
