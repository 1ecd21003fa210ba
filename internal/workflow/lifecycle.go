package workflow

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/model"
)

// Lifecycle events.
const (
	EventStart    = "start"
	EventComplete = "complete"
	EventExpire   = "expire"
)

// lifecycle is the document status table. signed and expired have no outgoing events.
var lifecycle = fsm.Events{
	{Name: EventStart, Src: []string{string(model.StatusDraft)}, Dst: string(model.StatusPending)},
	{Name: EventComplete, Src: []string{string(model.StatusPending)}, Dst: string(model.StatusSigned)},
	{
		Name: EventExpire,
		Src:  []string{string(model.StatusDraft), string(model.StatusPending)},
		Dst:  string(model.StatusExpired),
	},
}

// Can reports whether event is legal from status.
func Can(status model.DocumentStatus, event string) bool {
	return fsm.NewFSM(string(status), lifecycle, fsm.Callbacks{}).Can(event)
}

// transition moves doc.Status along event or fails with errs.ErrInvalidState.
func transition(ctx context.Context, doc *model.Document, event string) error {
	m := fsm.NewFSM(string(doc.Status), lifecycle, fsm.Callbacks{})
	if err := m.Event(ctx, event); err != nil {
		return fmt.Errorf("%s document in status %s: %w", event, doc.Status, errs.ErrInvalidState)
	}
	doc.Status = model.DocumentStatus(m.Current())
	return nil
}
