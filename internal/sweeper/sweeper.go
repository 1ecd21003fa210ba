// Package sweeper expires stale draft and pending documents on a timer.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/model"
	"github.com/and161185/signflow/internal/repository"
)

// Expirer expires a document if it is still at the version the sweeper saw.
type Expirer interface {
	Expire(ctx context.Context, docID uuid.UUID, ver int64) (*model.Document, error)
}

// Sweeper calls Expire on documents idle for longer than TTL.
type Sweeper struct {
	docs     repository.DocumentRepository
	wf       Expirer
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// New constructs a Sweeper. A zero ttl disables it.
func New(docs repository.DocumentRepository, wf Expirer, ttl, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{docs: docs, wf: wf, ttl: ttl, interval: interval, log: log, now: time.Now}
}

// Enabled reports whether a TTL is configured.
func (s *Sweeper) Enabled() bool { return s.ttl > 0 }

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep expires every stale draft or pending document once and returns how many it expired.
// Documents written after the listing are skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	all, err := s.docs.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.ttl)
	expired := 0
	for _, d := range all {
		if d.Status.Terminal() || !d.UpdatedAt.Before(cutoff) {
			continue
		}
		_, err := s.wf.Expire(ctx, d.ID, d.Ver)
		switch {
		case err == nil:
			expired++
			s.log.Info("document expired", zap.String("document_id", d.ID.String()))
		case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrConcurrentModification):
			s.log.Debug("expiry skipped", zap.String("document_id", d.ID.String()), zap.Error(err))
		default:
			return expired, err
		}
	}
	return expired, nil
}
