package sqlite

// schema contains the database schema DDL.
const schema = `
-- Shows
CREATE TABLE IF NOT EXISTS shows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    duration REAL DEFAULT 0,
    version INTEGER DEFAULT 0,
    runtime_version INTEGER DEFAULT 0,
    display_payload TEXT DEFAULT '[]',
    runtime_payload TEXT DEFAULT '',
    authorization_code TEXT DEFAULT '',
    protocol TEXT DEFAULT '',
    audio_file TEXT DEFAULT '',
    receiver_locations TEXT DEFAULT '',
    receiver_labels TEXT DEFAULT '',
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Inventory
CREATE TABLE IF NOT EXISTS inventory (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    duration REAL DEFAULT 0,
    fuse_delay REAL DEFAULT 0,
    lift_delay REAL DEFAULT 0,
    burn_rate REAL DEFAULT 0,
    color TEXT DEFAULT '',
    available_ct INTEGER DEFAULT 0,
    youtube_link TEXT DEFAULT '',
    youtube_link_start_sec INTEGER DEFAULT 0,
    image TEXT DEFAULT '',
    metadata TEXT DEFAULT ''
);

-- Racks
CREATE TABLE IF NOT EXISTS racks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    show_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    x_rows INTEGER NOT NULL,
    x_spacing REAL NOT NULL,
    y_rows INTEGER NOT NULL,
    y_spacing REAL NOT NULL,
    cells TEXT DEFAULT '{}',
    fuses TEXT DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_racks_show ON racks(show_id);

-- Operator state (single row)
CREATE TABLE IF NOT EXISTS operator_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    staged_show_id INTEGER DEFAULT 0,
    protocol_override TEXT DEFAULT '',
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Snapshot cache
CREATE TABLE IF NOT EXISTS snapshot_cache (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    snapshot BLOB NOT NULL,
    received_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
