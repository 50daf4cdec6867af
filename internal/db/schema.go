package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS classifier_cache (
    cache_key TEXT PRIMARY KEY,
    model TEXT,
    probability REAL,
    created_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_classifier_cache_model ON classifier_cache(model);
`

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(SchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
