// Package selectaction implements spec.md §4.8's Select action: keep only
// fields whose metadata matches a configured predicate, dropping the rest;
// control messages always pass through untouched.
package selectaction

import (
	"context"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// Match is one predicate key: either a single required value or membership
// in a set of accepted values, matching spec.md §6's `match: {key: value |
// [values]}` config shape.
type Match struct {
	Key    string
	Values []string // accepts if metadata[Key] is StringOrEmpty-equal to any entry
}

// Action implements spec.md §4.8's Select: a Field is forwarded only if
// every configured Match is satisfied; non-Field messages always forward.
type Action struct {
	*action.Base
	matches []Match
}

// New builds a Select action evaluating all of matches as a conjunction.
func New(next action.Action, matches []Match, reporter stats.Reporter, log logging.Logger) *Action {
	a := &Action{matches: matches}
	a.Base = action.NewBase("select", next, reporter, log, a.run)
	return a
}

func (a *Action) run(ctx context.Context, msg message.Message, next action.Action) error {
	if msg.Tag != message.TagField {
		return action.ExecuteNext(ctx, next, msg)
	}
	if !a.matchesAll(msg) {
		return nil
	}
	return action.ExecuteNext(ctx, next, msg)
}

func (a *Action) matchesAll(msg message.Message) bool {
	for _, m := range a.matches {
		v, ok := msg.Metadata.GetOpt(m.Key)
		if !ok {
			return false
		}
		actual := v.StringOrEmpty()
		found := false
		for _, want := range m.Values {
			if actual == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
