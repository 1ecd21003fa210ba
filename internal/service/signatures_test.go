package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/model"
	"github.com/and161185/signflow/internal/repository/kv"
	"github.com/and161185/signflow/internal/storage"
	"github.com/and161185/signflow/internal/workflow"
)

// scriptedWorkflow fails SubmitSignature with the queued errors, then succeeds.
type scriptedWorkflow struct {
	mu      sync.Mutex
	errs    []error
	submits int
	doc     *model.Document
}

func (w *scriptedWorkflow) Start(context.Context, uuid.UUID, []model.SignerInvite) (*model.Document, error) {
	return w.doc, nil
}
func (w *scriptedWorkflow) SubmitSignature(context.Context, uuid.UUID, string, []byte) (*model.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submits++
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		return nil, err
	}
	return w.doc, nil
}
func (w *scriptedWorkflow) Cancel(context.Context, uuid.UUID) (*model.Document, error) {
	return w.doc, nil
}

func TestSign_RetriesConflicts(t *testing.T) {
	t.Parallel()
	doc := &model.Document{ID: uuid.Must(uuid.NewV4())}
	wf := &scriptedWorkflow{
		errs: []error{errs.ErrConcurrentModification, errs.ErrConcurrentModification},
		doc:  doc,
	}
	s := NewSignatureService(nil, wf, 3, zaptest.NewLogger(t))
	s.baseDelay = time.Microsecond

	got, err := s.Sign(context.Background(), doc.ID, "s1", []byte("sig"))
	require.NoError(t, err)
	require.Equal(t, doc, got)
	require.Equal(t, 3, wf.submits)
}

func TestSign_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()
	wf := &scriptedWorkflow{errs: []error{
		errs.ErrConcurrentModification, errs.ErrConcurrentModification, errs.ErrConcurrentModification,
	}}
	s := NewSignatureService(nil, wf, 1, nil)
	s.baseDelay = time.Microsecond

	_, err := s.Sign(context.Background(), uuid.Must(uuid.NewV4()), "s1", []byte("sig"))
	require.ErrorIs(t, err, errs.ErrConcurrentModification)
	require.Equal(t, 2, wf.submits)
}

func TestSign_DoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()
	for _, want := range []error{errs.ErrAlreadySigned, errs.ErrInvalidState, errs.ErrNotFound, errs.ErrStorage} {
		wf := &scriptedWorkflow{errs: []error{want}}
		s := NewSignatureService(nil, wf, 5, nil)
		s.baseDelay = time.Microsecond

		_, err := s.Sign(context.Background(), uuid.Must(uuid.NewV4()), "s1", []byte("sig"))
		require.ErrorIs(t, err, want)
		require.Equal(t, 1, wf.submits, "%v must not be retried", want)
	}

	s := NewSignatureService(nil, &scriptedWorkflow{}, 1, nil)
	_, err := s.Sign(context.Background(), uuid.Nil, "s1", []byte("sig"))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestSignatures_EndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := kv.NewDocumentRepo(storage.NewMemory())
	docs := NewDocumentService(repo, fakeTemplates{})

	var completed int
	var mu sync.Mutex
	wf := workflow.New(repo, workflow.WithNotifier(workflow.NotifierFunc(func(context.Context, uuid.UUID) {
		mu.Lock()
		completed++
		mu.Unlock()
	})))
	s := NewSignatureService(repo, wf, 50, zaptest.NewLogger(t))
	s.baseDelay = time.Microsecond

	owner, stranger := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	d, err := docs.Create(ctx, owner, "Contrato", "Entre {{a}} e {{b}}", nil)
	require.NoError(t, err)

	_, err = s.Start(ctx, stranger, d.ID, []model.SignerInvite{{ID: "a"}})
	require.ErrorIs(t, err, errs.ErrNotFound)

	invites := []model.SignerInvite{
		{ID: "a", Name: "Ana", Email: "ana@example.com"},
		{ID: "b", Name: "Bia", Email: "bia@example.com"},
		{ID: "c", Name: "Caio", Email: "caio@example.com"},
	}
	_, err = s.Start(ctx, owner, d.ID, invites)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errCh := make(chan error, len(invites))
	for _, in := range invites {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.Sign(ctx, d.ID, id, []byte("sig-"+id))
			errCh <- err
		}(in.ID)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	got, err := docs.Get(ctx, owner, d.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSigned, got.Status)
	require.Equal(t, 1, completed)

	_, err = s.Cancel(ctx, owner, d.ID)
	require.ErrorIs(t, err, errs.ErrInvalidState)
	_, err = s.Cancel(ctx, stranger, d.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.Sign(ctx, d.ID, "a", []byte("again"))
	require.True(t, errors.Is(err, errs.ErrInvalidState))
}
