package database

// schemas maps database names to their embedded schema. All statements are
// idempotent so Migrate can run on every startup.
var schemas = map[string]string{
	"negotiations": negotiationsSchema,
}

const negotiationsSchema = `
CREATE TABLE IF NOT EXISTS negotiations (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    vendor      TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'NEGOTIATING',
    round       INTEGER NOT NULL DEFAULT 0,
    config_json TEXT NOT NULL,
    state_blob  BLOB,
    offer_json  TEXT,
    events_json TEXT,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_negotiations_status
    ON negotiations(status);
CREATE INDEX IF NOT EXISTS idx_negotiations_updated
    ON negotiations(updated_at);

CREATE TABLE IF NOT EXISTS decision_log (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    negotiation_id TEXT NOT NULL REFERENCES negotiations(id),
    round          INTEGER NOT NULL,
    action         TEXT NOT NULL,
    utility        REAL NOT NULL,
    strategy       TEXT NOT NULL DEFAULT '',
    reasons        TEXT NOT NULL,
    counter_json   TEXT,
    created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_log_negotiation
    ON decision_log(negotiation_id, round);
`
