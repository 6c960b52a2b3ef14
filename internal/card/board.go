// Package card tracks like/dislike votes on the course cards of one result list.
package card

import (
	"context"
	"sync"
	"time"

	"github.com/coursematch/coursematch-web/internal/api"
	"github.com/coursematch/coursematch-web/internal/ctxutil"
	domerrors "github.com/coursematch/coursematch-web/internal/errors"
	"github.com/coursematch/coursematch-web/internal/logger"
	"github.com/coursematch/coursematch-web/internal/metrics"
	"github.com/coursematch/coursematch-web/internal/storage"
)

// MsgFeedbackSend is shown when a vote could not be sent for a reason other
// than the service being unreachable.
const MsgFeedbackSend = "errorHandling.feedback.send"

const ledgerWriteTimeout = 5 * time.Second

// Key identifies a card: the result list it belongs to and its position in it.
// Two cards with the same course code stay distinct.
type Key struct {
	Generation uint64
	Index      int
}

// Sender submits feedback to the API.
type Sender interface {
	SendFeedback(ctx context.Context, fb api.Feedback) error
}

// Reporter surfaces a failed vote to the user.
type Reporter interface {
	Fail(ctx context.Context, fallbackKey string, err error)
}

// Ledger mirrors accepted votes locally.
type Ledger interface {
	RecordVote(ctx context.Context, v storage.Vote) error
}

// Status is the vote state of one card.
type Status int

const (
	Idle    Status = iota // both controls enabled
	Pending               // pressed control disabled, call outstanding
	Voted                 // accepted, final
)

// State is what a card renders: which control was pressed and whether the
// vote is still in flight.
type State struct {
	Status Status
	Label  api.Label
}

// Pressed reports whether label's control is the pressed one.
func (s State) Pressed(label api.Label) bool {
	return s.Status != Idle && s.Label == label
}

// Hidden reports whether label's control is hidden because the other one
// was pressed.
func (s State) Hidden(label api.Label) bool {
	return s.Status != Idle && s.Label != label
}

// Options configures a Board.
type Options struct {
	Ledger  Ledger // optional
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Board holds the vote states of the current result list. Votes from an
// older list are rejected; a newer list clears all states.
type Board struct {
	sender   Sender
	reporter Reporter
	ledger   Ledger
	metrics  *metrics.Metrics
	log      *logger.Logger

	mu         sync.Mutex
	generation uint64
	states     map[int]State
}

// NewBoard creates an empty board.
func NewBoard(sender Sender, reporter Reporter, opts Options) *Board {
	return &Board{
		sender:   sender,
		reporter: reporter,
		ledger:   opts.Ledger,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		states:   make(map[int]State),
	}
}

// Vote presses label on the card at key for course, which was matched by
// queryText. The press shows at once; if the API rejects the vote the card
// returns to Idle so the user can retry, and the failure is reported.
func (b *Board) Vote(ctx context.Context, key Key, course api.Course, queryText string, label api.Label) error {
	if label != api.LabelLike && label != api.LabelDislike {
		return domerrors.NewValidationError("label", "must be 0 or 1")
	}

	b.mu.Lock()
	if err := b.syncLocked(key.Generation); err != nil {
		b.mu.Unlock()
		return err
	}
	if st, ok := b.states[key.Index]; ok && st.Status != Idle {
		b.mu.Unlock()
		return domerrors.ErrAlreadyVoted
	}
	b.states[key.Index] = State{Status: Pending, Label: label}
	b.mu.Unlock()

	fb := api.Feedback{
		QueryText: queryText,
		MatchText: course.Description,
		MatchCode: course.Code,
		Label:     label,
	}
	err := b.sender.SendFeedback(ctx, fb)

	b.mu.Lock()
	if b.generation == key.Generation {
		if err != nil {
			delete(b.states, key.Index)
		} else {
			b.states[key.Index] = State{Status: Voted, Label: label}
		}
	}
	b.mu.Unlock()

	if err != nil {
		b.record(label, "error")
		b.reporter.Fail(ctx, MsgFeedbackSend, domerrors.NewWrapper("card", "feedback").Wrap(err, MsgFeedbackSend))
		return err
	}

	b.record(label, "success")
	b.mirror(ctx, fb)
	return nil
}

// State returns the vote state of the card at key.
func (b *Board) State(key Key) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if key.Generation != b.generation {
		return State{}
	}
	return b.states[key.Index]
}

// syncLocked moves the board to generation gen, clearing states for a newer
// list and rejecting votes on an older one.
func (b *Board) syncLocked(gen uint64) error {
	switch {
	case gen > b.generation:
		b.generation = gen
		clear(b.states)
	case gen < b.generation:
		return domerrors.ErrNotFound
	}
	return nil
}

func (b *Board) record(label api.Label, status string) {
	if b.metrics != nil {
		b.metrics.RecordFeedbackVote(label.String(), status)
	}
}

func (b *Board) mirror(ctx context.Context, fb api.Feedback) {
	if b.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), ledgerWriteTimeout)
	defer cancel()
	err := b.ledger.RecordVote(ctx, storage.Vote{
		SessionID: ctxutil.GetSessionID(ctx),
		QueryText: fb.QueryText,
		MatchCode: fb.MatchCode,
		MatchText: fb.MatchText,
		Label:     int(fb.Label),
	})
	if err != nil && b.log != nil {
		b.log.WithModule("card").WithError(err).WarnContext(ctx, "Failed to mirror vote to ledger")
	}
}
