package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/storage"
)

// KV stores records in the kv_records table. Writes lock the row and compare the
// stored version with the caller's base version, like a compare-and-swap.
type KV struct{ db *DB }

var _ storage.Provider = (*KV)(nil)

// NewKV constructs a PostgreSQL-backed provider.
func NewKV(db *DB) *KV { return &KV{db: db} }

// Get returns a single record by key.
func (s *KV) Get(ctx context.Context, key string) (storage.Record, error) {
	const q = `SELECT value, ver FROM kv_records WHERE key=$1`
	r := storage.Record{Key: key}
	if err := s.db.Pool.QueryRow(ctx, q, key).Scan(&r.Value, &r.Ver); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Record{}, errs.ErrNotFound
		}
		return storage.Record{}, err
	}
	return r, nil
}

// Put inserts (expectedVer == 0) or updates the record when the version matches.
func (s *KV) Put(ctx context.Context, key string, value []byte, expectedVer int64) (newVer int64, err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			newVer, err = 0, e
		}
	}()

	const sel = `SELECT ver FROM kv_records WHERE key=$1 FOR UPDATE`
	const ins = `INSERT INTO kv_records (key, value, ver) VALUES ($1,$2,1)`
	const upd = `UPDATE kv_records SET value=$2, ver=$3, updated_at=now() WHERE key=$1`

	var curVer int64
	scanErr := tx.QueryRow(ctx, sel, key).Scan(&curVer)
	switch {
	case scanErr == nil:
		if curVer != expectedVer {
			return 0, errs.ErrConcurrentModification
		}
		newVer = curVer + 1
		if _, err = tx.Exec(ctx, upd, key, value, newVer); err != nil {
			return 0, err
		}
		return newVer, nil
	case errors.Is(scanErr, pgx.ErrNoRows):
		if expectedVer != 0 {
			return 0, errs.ErrConcurrentModification
		}
		if _, err = tx.Exec(ctx, ins, key, value); err != nil {
			// a concurrent insert of the same key won the race
			if isUniqueViolation(err) {
				return 0, errs.ErrConcurrentModification
			}
			return 0, err
		}
		return 1, nil
	default:
		return 0, scanErr
	}
}

// List returns records under prefix ordered by key.
func (s *KV) List(ctx context.Context, prefix string) ([]storage.Record, error) {
	const q = `SELECT key, value, ver FROM kv_records WHERE starts_with(key, $1) ORDER BY key ASC`
	rows, err := s.db.Pool.Query(ctx, q, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var r storage.Record
		if err = rows.Scan(&r.Key, &r.Value, &r.Ver); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
