package mcp

import (
	"database/sql"

	"github.com/HerbHall/chronicle/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create mcp audit table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS mcp_audit (
						id          INTEGER PRIMARY KEY AUTOINCREMENT,
						tool        TEXT    NOT NULL,
						arguments   TEXT    NOT NULL DEFAULT '{}',
						outcome     TEXT    NOT NULL DEFAULT 'ok',
						duration_ms INTEGER NOT NULL DEFAULT 0,
						created_at  TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
					)`,
					`CREATE INDEX IF NOT EXISTS idx_mcp_audit_created_at ON mcp_audit(created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_mcp_audit_tool ON mcp_audit(tool)`,
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
