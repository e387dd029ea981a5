// Package action implements the chain-of-responsibility pipeline from
// spec.md §4.6: every plan is a linked sequence of Actions, each wrapping
// its executeImpl in a scoped timer and explicitly handing control to the
// next link. Grounded on the teacher's Peer.poll()/invoker.Spawn dispatch
// style (a small interface, one method that does the real work, callers
// decide what happens next) generalized from goroutine dispatch to
// synchronous chain execution, since spec.md §5 requires single-threaded
// cooperative execution per chain.
package action

import (
	"context"

	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// Action is the chain-of-responsibility link spec.md §4.6 names: Execute
// wraps the concrete step's work in a scoped timer and is what callers
// invoke; concrete actions implement Impl (wired in through NewBase and the
// embeddable Base) and call the package-level ExecuteNext to continue the
// chain.
type Action interface {
	// Execute runs this action (and, if it forwards, everything after it)
	// against msg.
	Execute(ctx context.Context, msg message.Message) error

	// Name identifies the action for statistics and logging.
	Name() string
}

// Impl is what a concrete action implements: the actual step logic. It
// receives the already-scoped-timed call and a reference to the rest of the
// chain so it can decide whether, and how many times, to forward.
type Impl func(ctx context.Context, msg message.Message, next Action) error

// Base wraps an Impl with the scoped-timing/statistics boilerplate common to
// every concrete action, and holds the next link in the chain. Concrete
// actions embed Base and pass their specific logic to NewBase, mirroring the
// teacher's "small interface, shared plumbing in one place" style.
type Base struct {
	name     string
	next     Action
	reporter stats.Reporter
	log      logging.Logger
	fn       Impl
}

// NewBase constructs a Base link. next may be nil for a chain's terminal
// action (a Sink).
func NewBase(name string, next Action, reporter stats.Reporter, log logging.Logger, fn Impl) *Base {
	if reporter == nil {
		reporter = stats.NewNop()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Base{name: name, next: next, reporter: reporter, log: log, fn: fn}
}

func (b *Base) Name() string { return b.name }

// Execute is the scoped-timer wrapper spec.md §4.6 requires: "statistics
// (wall time per action) are captured around each executeImpl" — implemented
// with stats.Time so the sample records even if fn panics.
func (b *Base) Execute(ctx context.Context, msg message.Message) error {
	var err error
	stats.Time(b.reporter, b.name, func() {
		b.reporter.AddBytes(b.name, len(msg.Payload))
		err = b.fn(ctx, msg, b.next)
	})
	return err
}

// Next returns the following link in the chain, or nil at the terminal
// action.
func (b *Base) Next() Action { return b.next }

// ExecuteNext forwards msg to next, a no-op if next is nil (the chain's
// terminal action). Impl functions call this to pass control down the
// chain, matching spec.md §4.6's "concrete actions explicitly call
// executeNext".
func ExecuteNext(ctx context.Context, next Action, msg message.Message) error {
	if next == nil {
		return nil
	}
	return next.Execute(ctx, msg)
}
