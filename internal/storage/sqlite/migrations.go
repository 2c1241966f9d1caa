package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// counterparty_id is NULL when the sender supplied no correlation id, so the
// unique index only rejects real replays.
const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL CHECK (type IN ('SENT', 'RECEIVED')),
    amount TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    counterparty_id TEXT,
    is_synced INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS secrets (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS receipts (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    correlation_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    UNIQUE (device_id, type, correlation_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_counterparty ON transactions(type, counterparty_id);
CREATE INDEX IF NOT EXISTS idx_transactions_is_synced ON transactions(is_synced);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
