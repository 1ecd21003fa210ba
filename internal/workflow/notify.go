package workflow

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Notifier receives the completion signal. It is called once per document, after the
// write that moved the document to signed has committed.
type Notifier interface {
	DocumentCompleted(ctx context.Context, documentID uuid.UUID)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, documentID uuid.UUID)

// DocumentCompleted calls f.
func (f NotifierFunc) DocumentCompleted(ctx context.Context, documentID uuid.UUID) {
	f(ctx, documentID)
}

// Notifiers fans a signal out in order.
type Notifiers []Notifier

// DocumentCompleted calls every notifier.
func (ns Notifiers) DocumentCompleted(ctx context.Context, documentID uuid.UUID) {
	for _, n := range ns {
		if n != nil {
			n.DocumentCompleted(ctx, documentID)
		}
	}
}

type logNotifier struct{ log *zap.Logger }

// LogNotifier writes completions to log.
func LogNotifier(log *zap.Logger) Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return logNotifier{log: log}
}

func (n logNotifier) DocumentCompleted(_ context.Context, documentID uuid.UUID) {
	n.log.Info("document completed", zap.String("document_id", documentID.String()))
}
