// Package repository defines the persistence contracts used by services and the workflow.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/signflow/internal/model"
)

// Mutation edits a loaded document in place. Returning an error aborts the update.
type Mutation func(doc *model.Document) error

// DocumentRepository provides versioned access to documents.
type DocumentRepository interface {
	// Create assigns an id, sets status draft and version 1, and persists the document.
	Create(ctx context.Context, draft model.DocumentDraft) (*model.Document, error)

	// Get returns a document by id or errs.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)

	// List returns every document ordered by id.
	List(ctx context.Context) ([]model.Document, error)

	// Update applies mutate when the stored version equals baseVer and bumps the version.
	Update(ctx context.Context, id uuid.UUID, baseVer int64, mutate Mutation) (*model.Document, error)
}
