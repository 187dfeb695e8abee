// Package ledger is the durable state of the replication engine: ingested
// trades, order mappings, and the audit event log, all in one SQLite file.
package ledger

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the ledger database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// WAL lets the pollers and the API read while the engine writes;
	// busy_timeout serializes concurrent writers instead of erroring.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
