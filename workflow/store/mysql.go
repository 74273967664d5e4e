package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is the bonus production-grade Store[S] backed by MySQL/MariaDB,
// for durable, multi-worker deployments where the bundled memory and local
// adapters aren't appropriate.
type MySQLStore[S any] struct {
	db *sql.DB
}

// NewMySQLStore opens dsn (e.g. "user:pass@tcp(127.0.0.1:3306)/dagflow") and
// ensures the backing table exists.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}

	s := &MySQLStore[S]{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore[S]) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dagflow_workflows (
			id    VARCHAR(255) PRIMARY KEY,
			state LONGTEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("store: create dagflow_workflows table: %w", err)
	}
	return nil
}

func (s *MySQLStore[S]) Save(ctx context.Context, id string, state S) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal state for %q: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dagflow_workflows (id, state) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE state = VALUES(state)`,
		id, string(b))
	if err != nil {
		return fmt.Errorf("store: save %q: %w", id, err)
	}
	return nil
}

func (s *MySQLStore[S]) Load(ctx context.Context, id string) (S, bool, error) {
	var zero S
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM dagflow_workflows WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("store: load %q: %w", id, err)
	}

	var out S
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return zero, false, fmt.Errorf("store: unmarshal state for %q: %w", id, err)
	}
	return out, true, nil
}

func (s *MySQLStore[S]) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dagflow_workflows WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete %q: %w", id, err)
	}
	return nil
}

func (s *MySQLStore[S]) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM dagflow_workflows`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the underlying database handle.
func (s *MySQLStore[S]) Close() error {
	return s.db.Close()
}
