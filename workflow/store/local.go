package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrQuotaExceeded signals that a LocalStore save would exceed MaxBytes,
// the analogue of a browser's localStorage QuotaExceededError.
var ErrQuotaExceeded = errors.New("store: local quota exceeded")

// LocalStore is a "local persisted map" adapter alongside the in-memory
// and remote adapters: a single-file, single-writer store standing in for
// a browser's localStorage, complete
// with a byte-budget quota and an index that self-heals if it is ever
// found inconsistent with the underlying table. Backed by SQLite in WAL
// mode; it is the only SQLite adapter in the store package.
type LocalStore[S any] struct {
	db       *sql.DB
	mu       sync.Mutex
	MaxBytes int64 // 0 means unbounded
}

// NewLocalStore opens (creating if absent) a SQLite-backed LocalStore at
// path. maxBytes bounds total stored payload size; 0 disables the quota.
func NewLocalStore[S any](path string, maxBytes int64) (*LocalStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	ls := &LocalStore[S]{db: db, MaxBytes: maxBytes}
	if err := ls.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ls.rebuildIndexIfCorrupt(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ls, nil
}

func (s *LocalStore[S]) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS local_workflows (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			byte_len INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("store: create local_workflows table: %w", err)
	}
	return nil
}

// rebuildIndexIfCorrupt recomputes byte_len for any row where it disagrees
// with the stored payload's actual length, the SQLite analogue of the
// spec's "rebuilt index if corrupted" requirement for the browser adapter.
func (s *LocalStore[S]) rebuildIndexIfCorrupt(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, state, byte_len FROM local_workflows`)
	if err != nil {
		return fmt.Errorf("store: scan local_workflows for index check: %w", err)
	}
	defer rows.Close()

	type fix struct {
		id   string
		want int64
	}
	var fixes []fix
	for rows.Next() {
		var id, state string
		var byteLen int64
		if err := rows.Scan(&id, &state, &byteLen); err != nil {
			return fmt.Errorf("store: scan local_workflows row: %w", err)
		}
		if actual := int64(len(state)); actual != byteLen {
			fixes = append(fixes, fix{id: id, want: actual})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, f := range fixes {
		if _, err := s.db.ExecContext(ctx, `UPDATE local_workflows SET byte_len = ? WHERE id = ?`, f.want, f.id); err != nil {
			return fmt.Errorf("store: rebuild byte_len index for %q: %w", f.id, err)
		}
	}
	return nil
}

func (s *LocalStore[S]) totalBytes(ctx context.Context, excludingID string) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT SUM(byte_len) FROM local_workflows WHERE id != ?`, excludingID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

func (s *LocalStore[S]) Save(ctx context.Context, id string, state S) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal state for %q: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.MaxBytes > 0 {
		existing, err := s.totalBytes(ctx, id)
		if err != nil {
			return fmt.Errorf("store: compute quota usage: %w", err)
		}
		if existing+int64(len(b)) > s.MaxBytes {
			return ErrQuotaExceeded
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO local_workflows (id, state, byte_len) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, byte_len = excluded.byte_len`,
		id, string(b), len(b))
	if err != nil {
		return fmt.Errorf("store: save %q: %w", id, err)
	}
	return nil
}

func (s *LocalStore[S]) Load(ctx context.Context, id string) (S, bool, error) {
	var zero S
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM local_workflows WHERE id = ?`, id).Scan(&raw)
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

func (s *LocalStore[S]) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM local_workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %q: %w", id, err)
	}
	return nil
}

func (s *LocalStore[S]) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM local_workflows`)
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
func (s *LocalStore[S]) Close() error {
	return s.db.Close()
}
