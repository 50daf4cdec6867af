package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store keeps raw classifier probabilities keyed by a content hash. It holds
// classifier outputs only, never scoring results.
type Store struct {
	conn *sql.DB
}

func OpenStore(path string) (*Store, error) {
	conn, err := Open(path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; serialize through a single connection.
	conn.SetMaxOpenConns(1)
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) LookupProbability(key string) (float64, bool, error) {
	row := s.conn.QueryRow(`SELECT probability FROM classifier_cache WHERE cache_key = ?`, key)
	var p float64
	if err := row.Scan(&p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lookup probability: %w", err)
	}
	return p, true, nil
}

func (s *Store) StoreProbability(key, model string, p float64) error {
	if _, err := s.conn.Exec(
		`INSERT OR REPLACE INTO classifier_cache(cache_key, model, probability, created_at) VALUES(?,?,?,?)`,
		key,
		model,
		p,
		time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("store probability: %w", err)
	}
	return nil
}

// PurgeModel drops every cached probability of one model.
func (s *Store) PurgeModel(model string) (int64, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM classifier_cache WHERE model = ?`, model)
	if err != nil {
		return 0, fmt.Errorf("purge model: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

func (s *Store) CountRows(table string) (int, error) {
	return countRowsConn(s.conn, table)
}

func countRowsConn(conn *sql.DB, table string) (int, error) {
	row := conn.QueryRow(`SELECT COUNT(*) FROM ` + table)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan count: %w", err)
	}
	return count, nil
}
