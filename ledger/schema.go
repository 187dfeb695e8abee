package ledger

// Schema creates the four persistent surfaces: the per-account trade store,
// the order mapping ledger, the audit event log, and the coarse-grain
// auto-replication set.
//
// The UNIQUE constraint on (master_order_id, follower_id) is what makes
// mapping creation an atomic compare-and-create: two concurrent replication
// attempts for the same pair cannot both insert a PENDING row.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	account_id TEXT NOT NULL,
	dedup_key TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	exchange TEXT NOT NULL DEFAULT '',
	side TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price REAL NOT NULL DEFAULT 0,
	product_type TEXT NOT NULL DEFAULT '',
	order_type TEXT NOT NULL DEFAULT '',
	traded_at DATETIME NOT NULL,
	ingested_at DATETIME NOT NULL,
	PRIMARY KEY (account_id, dedup_key)
);

CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account_id, ingested_at);

CREATE TABLE IF NOT EXISTS order_mappings (
	id TEXT PRIMARY KEY,
	master_order_id TEXT NOT NULL,
	follower_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	requested_quantity INTEGER NOT NULL,
	executed_quantity INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	follower_order_id TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (master_order_id, follower_id)
);

CREATE INDEX IF NOT EXISTS idx_mappings_follower ON order_mappings(follower_id, created_at);

CREATE TABLE IF NOT EXISTS trade_events (
	id TEXT PRIMARY KEY,
	master_order_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price REAL NOT NULL DEFAULT 0,
	total_followers INTEGER NOT NULL,
	successful_followers INTEGER NOT NULL,
	failed_followers INTEGER NOT NULL,
	skipped_followers INTEGER NOT NULL,
	processed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_master ON trade_events(master_order_id, processed_at);

CREATE TABLE IF NOT EXISTS replicated_trades (
	master_order_id TEXT PRIMARY KEY,
	marked_at DATETIME NOT NULL
);
`
