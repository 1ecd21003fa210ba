package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/and161185/signflow/internal/metrics"
	"github.com/and161185/signflow/internal/model"
	"github.com/and161185/signflow/internal/repository"
)

const maxRetryDelay = 500 * time.Millisecond

// Workflow is the signature state machine the service drives.
type Workflow interface {
	Start(ctx context.Context, docID uuid.UUID, invites []model.SignerInvite) (*model.Document, error)
	SubmitSignature(ctx context.Context, docID uuid.UUID, signerID string, artifact []byte) (*model.Document, error)
	Cancel(ctx context.Context, docID uuid.UUID) (*model.Document, error)
}

// SignatureService defines signing operations.
type SignatureService interface {
	// Start invites signers to one of the owner's drafts.
	Start(ctx context.Context, owner, id uuid.UUID, invites []model.SignerInvite) (*model.Document, error)
	// Sign records a signer's artifact, replaying on concurrent modification.
	Sign(ctx context.Context, id uuid.UUID, signerID string, artifact []byte) (*model.Document, error)
	// Cancel expires one of the owner's draft or pending documents.
	Cancel(ctx context.Context, owner, id uuid.UUID) (*model.Document, error)
}

type SignatureServiceImpl struct {
	docs       repository.DocumentRepository
	wf         Workflow
	maxRetries uint64
	baseDelay  time.Duration
	log        *zap.Logger
}

// NewSignatureService constructs SignatureService. maxRetries bounds Sign replays.
func NewSignatureService(
	docs repository.DocumentRepository, wf Workflow, maxRetries int, log *zap.Logger,
) *SignatureServiceImpl {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SignatureServiceImpl{
		docs:       docs,
		wf:         wf,
		maxRetries: uint64(maxRetries),
		baseDelay:  10 * time.Millisecond,
		log:        log,
	}
}

// Start checks ownership and starts the workflow. Not retried.
func (s *SignatureServiceImpl) Start(
	ctx context.Context, owner, id uuid.UUID, invites []model.SignerInvite,
) (*model.Document, error) {
	if _, err := ownedDocument(ctx, s.docs, owner, id); err != nil {
		return nil, err
	}
	return s.wf.Start(ctx, id, invites)
}

// Sign submits a signature. On errs.ErrConcurrentModification the submission is replayed
// against freshly loaded state with exponential backoff; every other error is final.
// The signer id is an opaque identity input.
func (s *SignatureServiceImpl) Sign(
	ctx context.Context, id uuid.UUID, signerID string, artifact []byte,
) (*model.Document, error) {
	if id == uuid.Nil {
		return nil, invalid("empty document id")
	}
	b := retry.NewExponential(s.baseDelay)
	b = retry.WithCappedDuration(maxRetryDelay, b)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxRetries(s.maxRetries, b)

	attempts := 0
	doc, err := retry.DoValue(ctx, b, func(ctx context.Context) (*model.Document, error) {
		attempts++
		d, err := s.wf.SubmitSignature(ctx, id, signerID, artifact)
		if isRetryable(err) {
			metrics.SignRetry()
			return nil, retry.RetryableError(err)
		}
		return d, err
	})
	metrics.Signature(err)
	if err != nil {
		s.log.Debug("signature rejected",
			zap.String("document_id", id.String()),
			zap.String("signer_id", signerID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return nil, err
	}
	return doc, nil
}

// Cancel checks ownership and expires the document. Not retried.
func (s *SignatureServiceImpl) Cancel(ctx context.Context, owner, id uuid.UUID) (*model.Document, error) {
	if _, err := ownedDocument(ctx, s.docs, owner, id); err != nil {
		return nil, err
	}
	return s.wf.Cancel(ctx, id)
}
