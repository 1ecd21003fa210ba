// Package storage defines the key-value contract the repositories persist through,
// together with an in-memory implementation.
//
// Every provider must make Get and Put atomic per key. Put is guarded by the version
// the caller last read: expectedVer 0 means "key must not exist", any other value must
// equal the stored version or the write fails with errs.ErrConcurrentModification.
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/and161185/signflow/internal/errs"
)

// Record is a stored value with its version.
type Record struct {
	Key   string
	Value []byte
	Ver   int64 // >= 1 once written
}

// Provider is the storage contract consumed by repositories.
type Provider interface {
	// Get returns the record or errs.ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)
	// Put writes value if the stored version equals expectedVer and returns the new version.
	Put(ctx context.Context, key string, value []byte, expectedVer int64) (int64, error)
	// List returns all records whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Record, error)
}

// Memory is a process-local Provider. Useful for tests and single-node demos.
type Memory struct {
	mu   sync.RWMutex
	data map[string]Record
}

// NewMemory constructs an empty in-memory provider.
func NewMemory() *Memory { return &Memory{data: map[string]Record{}} }

// Get returns a copy of the stored record.
func (m *Memory) Get(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.data[key]
	if !ok {
		return Record{}, errs.ErrNotFound
	}
	r.Value = append([]byte(nil), r.Value...)
	return r, nil
}

// Put stores value under the version guard.
func (m *Memory) Put(ctx context.Context, key string, value []byte, expectedVer int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.data[key].Ver
	if cur != expectedVer {
		return 0, errs.ErrConcurrentModification
	}
	newVer := cur + 1
	m.data[key] = Record{Key: key, Value: append([]byte(nil), value...), Ver: newVer}
	return newVer, nil
}

// List returns records under prefix ordered by key.
func (m *Memory) List(ctx context.Context, prefix string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.data))
	for k, r := range m.data {
		if strings.HasPrefix(k, prefix) {
			r.Value = append([]byte(nil), r.Value...)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
