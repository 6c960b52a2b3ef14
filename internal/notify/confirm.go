package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"

	domerrors "github.com/coursematch/coursematch-web/internal/errors"
)

// ConfirmOptions describes a confirmation prompt. Title and description are
// localization keys.
type ConfirmOptions struct {
	TitleKey       string
	DescriptionKey string
	OnCancel       func()
}

// Prompt is the pending confirmation as rendered.
type Prompt struct {
	ID             string
	TitleKey       string
	DescriptionKey string
}

type pendingOp struct {
	prompt   Prompt
	op       func(context.Context) error
	onCancel func()
}

// Confirmer holds at most one pending confirmation. Asking again replaces
// the previous prompt.
type Confirmer struct {
	mu      sync.Mutex
	pending *pendingOp
}

// NewConfirmer creates a confirmer with nothing pending.
func NewConfirmer() *Confirmer {
	return &Confirmer{}
}

// Confirm asks the user before running op and returns the prompt ID.
func (c *Confirmer) Confirm(op func(context.Context) error, opts ConfirmOptions) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := Prompt{
		ID:             uuid.NewString(),
		TitleKey:       opts.TitleKey,
		DescriptionKey: opts.DescriptionKey,
	}
	c.pending = &pendingOp{prompt: p, op: op, onCancel: opts.OnCancel}
	return p.ID
}

// Pending returns the prompt waiting for an answer.
func (c *Confirmer) Pending() (Prompt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Prompt{}, false
	}
	return c.pending.prompt, true
}

// Accept runs the operation of prompt id. An unknown or replaced id is
// reported as ErrNotFound.
func (c *Confirmer) Accept(ctx context.Context, id string) error {
	p, err := c.take(id)
	if err != nil {
		return err
	}
	return p.op(ctx)
}

// Cancel drops prompt id and runs its OnCancel hook.
func (c *Confirmer) Cancel(id string) error {
	p, err := c.take(id)
	if err != nil {
		return err
	}
	if p.onCancel != nil {
		p.onCancel()
	}
	return nil
}

func (c *Confirmer) take(id string) (*pendingOp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil || c.pending.prompt.ID != id {
		return nil, domerrors.ErrNotFound
	}
	p := c.pending
	c.pending = nil
	return p, nil
}
