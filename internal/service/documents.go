// Package service contains application services for authentication, documents and signatures.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/metrics"
	"github.com/and161185/signflow/internal/model"
	"github.com/and161185/signflow/internal/render"
	"github.com/and161185/signflow/internal/repository"
)

const defaultTitle = "Documento sem título"

// Templates is the read side of the template catalog.
type Templates interface {
	Get(id string) (model.Template, error)
}

// DocumentService defines owner-scoped document operations.
type DocumentService interface {
	// Create stores a draft from a free-form body and field set.
	Create(ctx context.Context, owner uuid.UUID, title, body string, fields []model.Field) (*model.Document, error)
	// CreateFromTemplate instantiates a catalog template with initial values.
	CreateFromTemplate(ctx context.Context, owner uuid.UUID, templateID, title string, values map[string]string) (*model.Document, error)
	// Preview renders a catalog template with values without storing anything.
	Preview(ctx context.Context, templateID string, values map[string]string) (string, error)
	// Get returns one of the owner's documents.
	Get(ctx context.Context, owner, id uuid.UUID) (*model.Document, error)
	// List returns the owner's documents, most recently updated first. Empty status lists all.
	List(ctx context.Context, owner uuid.UUID, status model.DocumentStatus) ([]model.Document, error)
	// UpdateFields sets field values (and optionally the title) on a draft.
	UpdateFields(ctx context.Context, owner, id uuid.UUID, baseVer int64, title string, values map[string]string) (*model.Document, error)
	// Stats counts the owner's documents per status.
	Stats(ctx context.Context, owner uuid.UUID) (model.Stats, error)
}

type DocumentServiceImpl struct {
	docs      repository.DocumentRepository
	templates Templates
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(docs repository.DocumentRepository, templates Templates) *DocumentServiceImpl {
	return &DocumentServiceImpl{docs: docs, templates: templates}
}

// Create validates fields and stores a new draft.
// Validation rules:
// - owner != uuid.Nil
// - field keys token-safe and unique, kinds known
// - non-empty values match their kind
func (s *DocumentServiceImpl) Create(
	ctx context.Context, owner uuid.UUID, title, body string, fields []model.Field,
) (*model.Document, error) {
	if owner == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	fields = append([]model.Field(nil), fields...)
	for i := range fields {
		k, err := model.ParseFieldKind(string(fields[i].Kind))
		if err != nil {
			return nil, invalid("field[%d]: %v", i, err)
		}
		fields[i].Kind = k
		if fields[i].Label == "" {
			fields[i].Label = fields[i].Key
		}
	}
	if err := checkFields(fields); err != nil {
		return nil, err
	}
	return s.create(ctx, model.DocumentDraft{
		OwnerID: owner,
		Title:   titleOr(title, defaultTitle),
		Body:    body,
		Fields:  fields,
	})
}

// CreateFromTemplate copies the template body and fields, applying values by key.
func (s *DocumentServiceImpl) CreateFromTemplate(
	ctx context.Context, owner uuid.UUID, templateID, title string, values map[string]string,
) (*model.Document, error) {
	if owner == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	t, err := s.templates.Get(templateID)
	if err != nil {
		return nil, err
	}
	fields, err := applyValues(t.Fields, values)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, model.DocumentDraft{
		OwnerID:    owner,
		TemplateID: t.ID,
		Title:      titleOr(title, t.Title),
		Body:       t.Body,
		Fields:     fields,
	})
}

func (s *DocumentServiceImpl) create(ctx context.Context, draft model.DocumentDraft) (*model.Document, error) {
	d, err := s.docs.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	metrics.DocumentCreated()
	return d, nil
}

// Preview renders and sanitizes a template filled with values.
func (s *DocumentServiceImpl) Preview(_ context.Context, templateID string, values map[string]string) (string, error) {
	t, err := s.templates.Get(templateID)
	if err != nil {
		return "", err
	}
	fields, err := applyValues(t.Fields, values)
	if err != nil {
		return "", err
	}
	metrics.Render()
	return render.Preview(t.Body, fields), nil
}

// Get hides documents of other owners behind errs.ErrNotFound.
func (s *DocumentServiceImpl) Get(ctx context.Context, owner, id uuid.UUID) (*model.Document, error) {
	return ownedDocument(ctx, s.docs, owner, id)
}

// List filters by owner and status in memory; the provider contract only offers prefix listing.
func (s *DocumentServiceImpl) List(
	ctx context.Context, owner uuid.UUID, status model.DocumentStatus,
) ([]model.Document, error) {
	if owner == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	all, err := s.docs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Document, 0, len(all))
	for _, d := range all {
		if d.OwnerID != owner || (status != "" && d.Status != status) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// UpdateFields edits a draft under the caller's base version.
func (s *DocumentServiceImpl) UpdateFields(
	ctx context.Context, owner, id uuid.UUID, baseVer int64, title string, values map[string]string,
) (*model.Document, error) {
	if baseVer <= 0 {
		return nil, invalid("base_ver must be positive")
	}
	if _, err := ownedDocument(ctx, s.docs, owner, id); err != nil {
		return nil, err
	}
	return s.docs.Update(ctx, id, baseVer, func(d *model.Document) error {
		if d.Status != model.StatusDraft {
			return fmt.Errorf("edit document in status %s: %w", d.Status, errs.ErrInvalidState)
		}
		fields, err := applyValues(d.Fields, values)
		if err != nil {
			return err
		}
		d.Fields = fields
		if t := strings.TrimSpace(title); t != "" {
			d.Title = t
		}
		return nil
	})
}

// Stats counts the owner's documents.
func (s *DocumentServiceImpl) Stats(ctx context.Context, owner uuid.UUID) (model.Stats, error) {
	docs, err := s.List(ctx, owner, "")
	if err != nil {
		return model.Stats{}, err
	}
	var st model.Stats
	for _, d := range docs {
		st.Total++
		switch d.Status {
		case model.StatusDraft:
			st.Draft++
		case model.StatusPending:
			st.Pending++
		case model.StatusSigned:
			st.Signed++
		case model.StatusExpired:
			st.Expired++
		}
	}
	return st, nil
}

func ownedDocument(ctx context.Context, docs repository.DocumentRepository, owner, id uuid.UUID) (*model.Document, error) {
	if owner == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	if id == uuid.Nil {
		return nil, invalid("empty document id")
	}
	d, err := docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != owner {
		return nil, fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	return d, nil
}

// applyValues returns a copy of fields with values set by key. Unknown keys and values
// that do not match their field kind are rejected.
func applyValues(fields []model.Field, values map[string]string) ([]model.Field, error) {
	out := append([]model.Field(nil), fields...)
	idx := make(map[string]int, len(out))
	for i, f := range out {
		idx[f.Key] = i
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		i, ok := idx[k]
		if !ok {
			return nil, invalid("unknown field %q", k)
		}
		out[i].Value = strings.TrimSpace(values[k])
	}
	if err := checkFields(out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkFields(fields []model.Field) error {
	if err := model.ValidateFields(fields); err != nil {
		return invalid("%v", err)
	}
	for _, f := range fields {
		if err := f.Kind.CheckValue(f.Value); err != nil {
			return invalid("field %q: %v", f.Key, err)
		}
	}
	return nil
}

func titleOr(title, fallback string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return fallback
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("validation: %s: %w", fmt.Sprintf(format, args...), errs.ErrInvalidArgument)
}

// isRetryable reports the one failure a caller may replay.
func isRetryable(err error) bool { return errors.Is(err, errs.ErrConcurrentModification) }
