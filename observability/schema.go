package observability

import (
	"database/sql"
	"fmt"
)

// Schema is the DDL of the usage ledger.
const Schema = `
CREATE TABLE IF NOT EXISTS summary_events (
    event_id      TEXT PRIMARY KEY,
    page_url      TEXT NOT NULL DEFAULT '',
    host          TEXT NOT NULL DEFAULT '',
    strategy      TEXT NOT NULL DEFAULT '',
    provider      TEXT NOT NULL DEFAULT '',
    model         TEXT NOT NULL DEFAULT '',
    input_tokens  INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    total_tokens  INTEGER NOT NULL DEFAULT 0,
    cost          REAL NOT NULL DEFAULT 0,
    estimate      INTEGER NOT NULL DEFAULT 0,
    outcome       TEXT NOT NULL,
    error         TEXT,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summary_events_created
    ON summary_events(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_summary_events_provider
    ON summary_events(provider, created_at DESC);
`

// Init applies Schema to db.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("observability: init schema: %w", err)
	}
	return nil
}
