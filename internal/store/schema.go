package store

// schemaVersionV1 is the current schema version for this build.
const schemaVersionV1 = 1

// schemaV1 creates the full schema on a fresh database. Evidence and
// report payloads are stored as JSON; the indexed columns exist for
// lookup and ordering only.
const schemaV1 = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE evidence (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    story_id   TEXT    NOT NULL,
    version    INTEGER NOT NULL,
    payload    TEXT    NOT NULL,
    created_at TEXT    NOT NULL,
    UNIQUE(story_id, version)
);
CREATE INDEX idx_evidence_story ON evidence(story_id, version);

CREATE TABLE gap_actions (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    story_id  TEXT NOT NULL,
    gap_id    TEXT NOT NULL,
    action    TEXT NOT NULL,
    timestamp TEXT NOT NULL
);
CREATE INDEX idx_gap_actions ON gap_actions(story_id, gap_id, id);

CREATE TABLE reports (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    story_id     TEXT NOT NULL,
    generated_at TEXT NOT NULL,
    payload      TEXT NOT NULL
);
CREATE INDEX idx_reports_story ON reports(story_id, id);
`
