// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Limiter controls login attempts and temporary lockouts per (account, client).
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, account string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, account string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, account string, ipHash []byte) (bool, time.Duration, error)
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

type entry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter with the same window and lockout rules as PG.
// Entries expire from the cache once neither the window nor a block can still apply.
type Memory struct {
	mu       sync.Mutex
	c        *cache.Cache
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

var (
	_ Limiter = (*Memory)(nil)
	_ Limiter = (*PG)(nil)
)

// NewMemory constructs an in-process limiter. Expired entries are purged every window.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		c:        cache.New(window, window),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func memKey(account string, ipHash []byte) string { return account + "\x00" + string(ipHash) }

func (l *Memory) get(k string) (*entry, bool) {
	v, ok := l.c.Get(k)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// Allow reports whether (account, ip) is currently unblocked.
func (l *Memory) Allow(_ context.Context, account string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.get(memKey(account, ipHash))
	if !ok {
		return true, 0, nil
	}
	if now := l.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for (account, ip).
func (l *Memory) Success(_ context.Context, account string, ipHash []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Delete(memKey(account, ipHash))
	return nil
}

// Failure records a failed attempt. A failure outside the window restarts the count.
func (l *Memory) Failure(_ context.Context, account string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	k := memKey(account, ipHash)
	e, ok := l.get(k)
	if !ok || now.Sub(e.updatedAt) > l.window {
		e = &entry{}
	}
	e.fails++
	e.updatedAt = now
	ttl := l.window
	blocked := e.fails >= l.maxFails
	if blocked {
		e.blockedUntil = now.Add(l.blockFor)
		ttl = max(ttl, l.blockFor)
	}
	l.c.Set(k, e, ttl)
	if blocked {
		return true, l.blockFor, nil
	}
	return false, 0, nil
}

// Len returns the number of tracked (account, ip) pairs, expired ones included
// until the next purge.
func (l *Memory) Len() int { return l.c.ItemCount() }
