// Package redis implements storage.Provider on Redis hashes.
//
// Each record is a hash {value, ver} under "<namespace>:<key>". Writes run inside
// WATCH/MULTI so a concurrent writer aborts the transaction instead of overwriting.
package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	goredis "github.com/go-redis/redis/v8"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/storage"
)

const (
	fieldValue = "value"
	fieldVer   = "ver"
	scanBatch  = 256
)

// Store is a Redis-backed provider.
type Store struct {
	rdb goredis.UniversalClient
	ns  string
}

var _ storage.Provider = (*Store)(nil)

// New constructs a provider. Keys are namespaced so several deployments may share a db.
func New(rdb goredis.UniversalClient, namespace string) *Store {
	if namespace == "" {
		namespace = "signflow"
	}
	return &Store{rdb: rdb, ns: namespace}
}

// Dial connects to a single Redis node and pings it.
func Dial(ctx context.Context, addr, namespace string) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return New(rdb, namespace), nil
}

// Close releases the client.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) redisKey(key string) string { return s.ns + ":" + key }

func (s *Store) storageKey(rk string) string { return strings.TrimPrefix(rk, s.ns+":") }

// Get returns a single record.
func (s *Store) Get(ctx context.Context, key string) (storage.Record, error) {
	vals, err := s.rdb.HMGet(ctx, s.redisKey(key), fieldValue, fieldVer).Result()
	if err != nil {
		return storage.Record{}, err
	}
	return decode(key, vals)
}

// Put writes under WATCH; a concurrent change to the key aborts with a conflict.
func (s *Store) Put(ctx context.Context, key string, value []byte, expectedVer int64) (int64, error) {
	rk := s.redisKey(key)
	var newVer int64
	txf := func(tx *goredis.Tx) error {
		cur, err := tx.HGet(ctx, rk, fieldVer).Int64()
		switch {
		case errors.Is(err, goredis.Nil):
			cur = 0
		case err != nil:
			return err
		}
		if cur != expectedVer {
			return errs.ErrConcurrentModification
		}
		newVer = cur + 1
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, rk, fieldValue, value, fieldVer, newVer)
			return nil
		})
		return err
	}
	if err := s.rdb.Watch(ctx, txf, rk); err != nil {
		if errors.Is(err, goredis.TxFailedErr) {
			return 0, errs.ErrConcurrentModification
		}
		return 0, err
	}
	return newVer, nil
}

// List scans keys under prefix and loads them ordered by key. Records removed
// between SCAN and HMGET are skipped.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.Record, error) {
	var (
		keys   []string
		cursor uint64
	)
	match := s.redisKey(prefix) + "*"
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)
	keys = dedupe(keys)

	out := make([]storage.Record, 0, len(keys))
	for _, rk := range keys {
		vals, err := s.rdb.HMGet(ctx, rk, fieldValue, fieldVer).Result()
		if err != nil {
			return nil, err
		}
		r, err := decode(s.storageKey(rk), vals)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// SCAN may return a key more than once.
func dedupe(sorted []string) []string {
	out := sorted[:0]
	for _, k := range sorted {
		if len(out) > 0 && out[len(out)-1] == k {
			continue
		}
		out = append(out, k)
	}
	return out
}

func decode(key string, vals []interface{}) (storage.Record, error) {
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return storage.Record{}, errs.ErrNotFound
	}
	value, ok := vals[0].(string)
	if !ok {
		return storage.Record{}, errors.New("redis: unexpected value type")
	}
	verStr, ok := vals[1].(string)
	if !ok {
		return storage.Record{}, errors.New("redis: unexpected version type")
	}
	ver, err := strconv.ParseInt(verStr, 10, 64)
	if err != nil {
		return storage.Record{}, err
	}
	return storage.Record{Key: key, Value: []byte(value), Ver: ver}, nil
}
