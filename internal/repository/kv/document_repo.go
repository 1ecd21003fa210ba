package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/model"
	"github.com/and161185/signflow/internal/repository"
	"github.com/and161185/signflow/internal/storage"
)

// DocumentRepo implements repository.DocumentRepository.
type DocumentRepo struct {
	p   storage.Provider
	now func() time.Time
}

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// NewDocumentRepo constructs a document repository over the provider.
func NewDocumentRepo(p storage.Provider) *DocumentRepo {
	return &DocumentRepo{p: p, now: func() time.Time { return time.Now().UTC() }}
}

func documentKey(id uuid.UUID) string { return documentsPrefix + id.String() }

// Create persists a new draft. The id is only handed out after the write succeeded.
func (r *DocumentRepo) Create(ctx context.Context, draft model.DocumentDraft) (*model.Document, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := r.now()
	doc := &model.Document{
		ID:         id,
		OwnerID:    draft.OwnerID,
		TemplateID: draft.TemplateID,
		Title:      draft.Title,
		Body:       draft.Body,
		Fields:     append([]model.Field(nil), draft.Fields...),
		Status:     model.StatusDraft,
		Ver:        1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if _, err := r.p.Put(ctx, documentKey(id), b, 0); err != nil {
		if errors.Is(err, errs.ErrConcurrentModification) {
			return nil, fmt.Errorf("create document %s: %w: id taken", id, errs.ErrStorage)
		}
		return nil, storageErr("create document", err)
	}
	return doc, nil
}

// Get loads a single document.
func (r *DocumentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	rec, err := r.p.Get(ctx, documentKey(id))
	if err != nil {
		return nil, storageErr("get document", err)
	}
	return decodeDocument(rec)
}

// List returns all documents in key order.
func (r *DocumentRepo) List(ctx context.Context) ([]model.Document, error) {
	recs, err := r.p.List(ctx, documentsPrefix)
	if err != nil {
		return nil, storageErr("list documents", err)
	}
	out := make([]model.Document, 0, len(recs))
	for _, rec := range recs {
		d, err := decodeDocument(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// Update applies mutate under the version guard. Identity and creation time are
// restored after mutate so a mutation cannot move a document.
func (r *DocumentRepo) Update(
	ctx context.Context, id uuid.UUID, baseVer int64, mutate repository.Mutation,
) (*model.Document, error) {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Ver != baseVer {
		return nil, errs.ErrConcurrentModification
	}

	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID, next.OwnerID, next.CreatedAt = cur.ID, cur.OwnerID, cur.CreatedAt
	next.Ver = baseVer + 1
	next.UpdatedAt = r.now()

	b, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	newVer, err := r.p.Put(ctx, documentKey(id), b, baseVer)
	if err != nil {
		return nil, storageErr("update document", err)
	}
	next.Ver = newVer
	return next, nil
}

func decodeDocument(rec storage.Record) (*model.Document, error) {
	var d model.Document
	if err := json.Unmarshal(rec.Value, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", rec.Key, errs.ErrStorage, err)
	}
	// the provider version is authoritative
	d.Ver = rec.Ver
	return &d, nil
}
