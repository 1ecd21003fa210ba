// Package workflow implements the document signature state machine.
//
// The workflow holds no lock. Every mutation goes through
// repository.DocumentRepository.Update, guarded by the version the caller loaded, so
// concurrent callers in separate processes either commit or fail with
// errs.ErrConcurrentModification.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/metrics"
	"github.com/and161185/signflow/internal/model"
	"github.com/and161185/signflow/internal/repository"
)

// Workflow drives signer and document state.
type Workflow struct {
	docs     repository.DocumentRepository
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithNotifier sets the completion notifier.
func WithNotifier(n Notifier) Option { return func(w *Workflow) { w.notifier = n } }

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option { return func(w *Workflow) { w.log = log } }

// WithClock overrides the signing timestamp source.
func WithClock(now func() time.Time) Option { return func(w *Workflow) { w.now = now } }

// New constructs a Workflow over docs.
func New(docs repository.DocumentRepository, opts ...Option) *Workflow {
	w := &Workflow{
		docs: docs,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(w)
	}
	if w.log == nil {
		w.log = zap.NewNop()
	}
	if w.notifier == nil {
		w.notifier = Notifiers(nil)
	}
	return w
}

// Start invites signers to a draft and moves it to pending. Signers keep invite order.
func (w *Workflow) Start(ctx context.Context, docID uuid.UUID, invites []model.SignerInvite) (*model.Document, error) {
	if err := validateInvites(invites); err != nil {
		return nil, err
	}
	doc, err := w.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.StatusDraft {
		return nil, fmt.Errorf("start document in status %s: %w", doc.Status, errs.ErrInvalidState)
	}

	upd, err := w.docs.Update(ctx, doc.ID, doc.Ver, func(d *model.Document) error {
		if err := transition(ctx, d, EventStart); err != nil {
			return err
		}
		d.Signers = make([]model.Signer, 0, len(invites))
		for _, in := range invites {
			d.Signers = append(d.Signers, model.Signer{
				ID:     in.ID,
				Name:   in.Name,
				Email:  in.Email,
				Status: model.SignerPending,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.committed(doc.Status, upd)
	return upd, nil
}

// SubmitSignature records artifact for signerID. The write that completes the set of
// signatures moves the document to signed and fires the notifier. A lost race returns
// errs.ErrConcurrentModification and nothing is written; the caller replays against a
// fresh load.
func (w *Workflow) SubmitSignature(
	ctx context.Context, docID uuid.UUID, signerID string, artifact []byte,
) (*model.Document, error) {
	if signerID == "" {
		return nil, fmt.Errorf("empty signer id: %w", errs.ErrInvalidArgument)
	}
	if len(artifact) == 0 {
		return nil, fmt.Errorf("empty signature artifact: %w", errs.ErrInvalidArgument)
	}

	doc, err := w.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := checkSignable(doc, signerID); err != nil {
		return nil, err
	}

	upd, err := w.docs.Update(ctx, doc.ID, doc.Ver, func(d *model.Document) error {
		if err := checkSignable(d, signerID); err != nil {
			return err
		}
		s, _ := d.Signer(signerID)
		at := w.now()
		s.Status = model.SignerSigned
		s.SignedAt = &at
		s.Artifact = append([]byte(nil), artifact...)
		if d.AllSigned() {
			return transition(ctx, d, EventComplete)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Debug("signature recorded",
		zap.String("document_id", upd.ID.String()),
		zap.String("signer_id", signerID),
		zap.Int64("ver", upd.Ver))
	w.committed(doc.Status, upd)
	if upd.Status == model.StatusSigned {
		w.notifier.DocumentCompleted(ctx, upd.ID)
	}
	return upd, nil
}

// Cancel expires a draft or pending document. When a concurrent write wins the race,
// the document is reloaded: if it can no longer be expired the result is
// errs.ErrInvalidState, otherwise the conflict is returned.
func (w *Workflow) Cancel(ctx context.Context, docID uuid.UUID) (*model.Document, error) {
	doc, err := w.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !Can(doc.Status, EventExpire) {
		return nil, fmt.Errorf("cancel document in status %s: %w", doc.Status, errs.ErrInvalidState)
	}

	upd, err := w.docs.Update(ctx, doc.ID, doc.Ver, func(d *model.Document) error {
		return transition(ctx, d, EventExpire)
	})
	if errors.Is(err, errs.ErrConcurrentModification) {
		cur, gerr := w.docs.Get(ctx, docID)
		if gerr != nil {
			return nil, gerr
		}
		if !Can(cur.Status, EventExpire) {
			return nil, fmt.Errorf("cancel document in status %s: %w", cur.Status, errs.ErrInvalidState)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	w.committed(doc.Status, upd)
	return upd, nil
}

// Expire cancels the document only while it is still at version ver, so a write
// made after the caller observed ver keeps the document alive.
func (w *Workflow) Expire(ctx context.Context, docID uuid.UUID, ver int64) (*model.Document, error) {
	var from model.DocumentStatus
	upd, err := w.docs.Update(ctx, docID, ver, func(d *model.Document) error {
		from = d.Status
		return transition(ctx, d, EventExpire)
	})
	if err != nil {
		return nil, err
	}
	w.committed(from, upd)
	return upd, nil
}

func (w *Workflow) committed(from model.DocumentStatus, doc *model.Document) {
	if from == doc.Status {
		return
	}
	metrics.Transition(string(from), string(doc.Status))
	w.log.Info("document status changed",
		zap.String("document_id", doc.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(doc.Status)))
}

func checkSignable(doc *model.Document, signerID string) error {
	if doc.Status != model.StatusPending {
		return fmt.Errorf("sign document in status %s: %w", doc.Status, errs.ErrInvalidState)
	}
	s, ok := doc.Signer(signerID)
	if !ok {
		return fmt.Errorf("signer %q: %w", signerID, errs.ErrNotFound)
	}
	if s.Status == model.SignerSigned {
		return fmt.Errorf("signer %q: %w", signerID, errs.ErrAlreadySigned)
	}
	return nil
}

func validateInvites(invites []model.SignerInvite) error {
	if len(invites) == 0 {
		return fmt.Errorf("no signers: %w", errs.ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(invites))
	for i, in := range invites {
		if in.ID == "" {
			return fmt.Errorf("signer[%d] empty id: %w", i, errs.ErrInvalidArgument)
		}
		if _, dup := seen[in.ID]; dup {
			return fmt.Errorf("signer[%d] duplicate id %q: %w", i, in.ID, errs.ErrInvalidArgument)
		}
		seen[in.ID] = struct{}{}
	}
	return nil
}
