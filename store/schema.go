package store

// schema is installed verbatim on a fresh database and is idempotent
// against an already-initialized one (every statement is IF NOT EXISTS).
// Table names and key shapes follow the storage table list: content is
// addressed by the hash types in vocab, deltas are recorded as
// (id, base id) pairs, and the data columns of files, file_deltas,
// rosters, roster_deltas and revisions hold gzip-compressed bytes (the
// other blob columns are stored as written).
//
// Grounded on steveyegge-beads' internal/storage/sqlite schema.go
// (`const schema = ...` as a single Go string constant, CREATE TABLE IF
// NOT EXISTS throughout, one index per frequently-filtered column).
const schema = `
CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	data BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS file_deltas (
	id TEXT PRIMARY KEY,
	base_id TEXT NOT NULL,
	reverse INTEGER NOT NULL,
	data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_deltas_base ON file_deltas(base_id);

CREATE TABLE IF NOT EXISTS rosters (
	revision_id TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	data BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS roster_deltas (
	revision_id TEXT PRIMARY KEY,
	base_revision_id TEXT NOT NULL,
	reverse INTEGER NOT NULL,
	checksum TEXT NOT NULL,
	data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_roster_deltas_base ON roster_deltas(base_revision_id);

CREATE TABLE IF NOT EXISTS revisions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	data BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS revision_ancestry (
	parent_id TEXT NOT NULL,
	child_id TEXT NOT NULL,
	PRIMARY KEY (parent_id, child_id)
);
CREATE INDEX IF NOT EXISTS idx_revision_ancestry_child ON revision_ancestry(child_id);

CREATE TABLE IF NOT EXISTS heights (
	revision_id TEXT PRIMARY KEY,
	height BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS revision_certs (
	hash TEXT PRIMARY KEY,
	revision_id TEXT NOT NULL,
	name TEXT NOT NULL,
	value BLOB NOT NULL,
	key_id TEXT NOT NULL,
	signature BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revision_certs_revision ON revision_certs(revision_id);
CREATE INDEX IF NOT EXISTS idx_revision_certs_name ON revision_certs(name);

CREATE TABLE IF NOT EXISTS branch_leaves (
	branch TEXT NOT NULL,
	revision_id TEXT NOT NULL,
	PRIMARY KEY (branch, revision_id)
);

CREATE TABLE IF NOT EXISTS public_keys (
	key_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	public_key BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS branch_epochs (
	epoch_id TEXT PRIMARY KEY,
	branch TEXT NOT NULL UNIQUE,
	epoch BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS db_vars (
	domain TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (domain, name)
);

CREATE TABLE IF NOT EXISTS next_node_id (
	id INTEGER NOT NULL
);
`

// creatorCode identifies this engine as the creator of a database file,
// recorded in db_vars so a later Open against a database created by
// something else fails fast instead of misreading foreign tables.
const creatorCode = "mtn-store"

// schemaVersion bumps whenever the DDL above changes shape.
const schemaVersion = "1"
