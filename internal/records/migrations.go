package records

import (
	"database/sql"

	"github.com/HerbHall/chronicle/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create records table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS records (
						id         INTEGER PRIMARY KEY AUTOINCREMENT,
						fields     TEXT NOT NULL DEFAULT '{}',
						created_at TEXT NOT NULL,
						updated_at TEXT NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at)`,
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
