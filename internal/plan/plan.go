// Package plan implements spec.md §4.9's Plan and Dispatcher: a Plan pairs
// a predicate over metadata with a head Action; the Dispatcher owns an
// ordered list of plans and feeds every matching plan on each received
// message.
package plan

import (
	"context"
	"errors"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/internal/domain"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// OnError is the per-plan error policy spec.md §7 names: "policy is
// per-plan (on-error: continue|abort, default abort)".
type OnError int

const (
	// Abort propagates the error out of Feed, stopping the server loop.
	Abort OnError = iota
	// Continue logs the error and moves on to the next plan/message.
	Continue
)

// Predicate decides whether a message belongs to a Plan. Control messages
// with no metadata-relevant content (e.g. Close) are typically matched by
// every plan.
type Predicate func(msg message.Message) bool

// MatchAll is the predicate a catch-all plan uses.
func MatchAll(message.Message) bool { return true }

// Plan pairs a Predicate with a head Action and its on-error policy,
// instantiated from configuration at server startup (spec.md §4.9: "no
// dynamic re-registration during steady state").
type Plan struct {
	Name      string
	Predicate Predicate
	Head      action.Action
	OnError   OnError
}

// Dispatcher owns an ordered list of Plans and implements the server main
// loop's feed step: on each message, it invokes every matching plan's head
// action (spec.md §4.9: "a field may feed multiple plans").
type Dispatcher struct {
	plans []Plan
	log   logging.Logger
}

// New builds a Dispatcher over plans, preserving their configured order.
func New(plans []Plan, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.NewNop()
	}
	return &Dispatcher{plans: append([]Plan(nil), plans...), log: log}
}

// Feed runs msg through every matching plan's head action. A plan whose
// OnError is Abort propagates its error immediately; Continue logs it and
// moves on to the next plan. A *domain.Error is logged and skipped under
// either policy, so a bad field never stops the server.
func (d *Dispatcher) Feed(ctx context.Context, msg message.Message) error {
	for _, p := range d.plans {
		if !p.Predicate(msg) {
			continue
		}
		if err := p.Head.Execute(ctx, msg); err != nil {
			var domErr *domain.Error
			if errors.As(err, &domErr) {
				d.log.Errorf("plan %q: %v (field dropped, continuing)", p.Name, err)
				continue
			}
			if p.OnError == Continue {
				d.log.Warnf("plan %q: %v (continuing per on-error policy)", p.Name, err)
				continue
			}
			return err
		}
	}
	return nil
}
