package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/pkg/message"
)

type recorder struct {
	*action.Base
	received []message.Message
	err      error
}

func newRecorder(name string, err error) *recorder {
	r := &recorder{err: err}
	r.Base = action.NewBase(name, nil, nil, nil, func(ctx context.Context, msg message.Message, next action.Action) error {
		if r.err != nil {
			return r.err
		}
		r.received = append(r.received, msg)
		return nil
	})
	return r
}

func categoryPredicate(want string) Predicate {
	return func(msg message.Message) bool {
		v, ok := msg.Metadata.GetOpt("category")
		return ok && v.StringOrEmpty() == want
	}
}

func fieldMessage(category string) message.Message {
	md := message.NewMetadata()
	md.Set("category", message.StringValue(category))
	return message.NewMessage(message.TagField, message.Peer{}, message.Peer{}, md, nil)
}

func TestDispatcher_FeedsOnlyMatchingPlans(t *testing.T) {
	ocean := newRecorder("ocean", nil)
	atmosphere := newRecorder("atmosphere", nil)

	d := New([]Plan{
		{Name: "ocean", Predicate: categoryPredicate("ocean"), Head: ocean},
		{Name: "atmosphere", Predicate: categoryPredicate("atmosphere"), Head: atmosphere},
	}, nil)

	if err := d.Feed(context.Background(), fieldMessage("ocean")); err != nil {
		t.Fatalf("feed: %v", err)
	}

	if len(ocean.received) != 1 {
		t.Fatalf("expected the ocean plan to receive the message")
	}
	if len(atmosphere.received) != 0 {
		t.Fatalf("expected the atmosphere plan to be skipped")
	}
}

func TestDispatcher_AFieldCanFeedMultiplePlans(t *testing.T) {
	a := newRecorder("a", nil)
	b := newRecorder("b", nil)

	d := New([]Plan{
		{Name: "a", Predicate: MatchAll, Head: a},
		{Name: "b", Predicate: MatchAll, Head: b},
	}, nil)

	if err := d.Feed(context.Background(), fieldMessage("ocean")); err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(a.received) != 1 || len(b.received) != 1 {
		t.Fatalf("expected both plans to receive the message")
	}
}

func TestDispatcher_AbortPolicyPropagatesError(t *testing.T) {
	failing := newRecorder("failing", errors.New("sink down"))
	d := New([]Plan{{Name: "failing", Predicate: MatchAll, Head: failing, OnError: Abort}}, nil)

	if err := d.Feed(context.Background(), fieldMessage("ocean")); err == nil {
		t.Fatalf("expected the abort-policy plan's error to propagate")
	}
}

func TestDispatcher_ContinuePolicySwallowsErrorAndMovesOn(t *testing.T) {
	failing := newRecorder("failing", errors.New("sink down"))
	next := newRecorder("next", nil)

	d := New([]Plan{
		{Name: "failing", Predicate: MatchAll, Head: failing, OnError: Continue},
		{Name: "next", Predicate: MatchAll, Head: next},
	}, nil)

	if err := d.Feed(context.Background(), fieldMessage("ocean")); err != nil {
		t.Fatalf("expected Continue policy to swallow the error, got %v", err)
	}
	if len(next.received) != 1 {
		t.Fatalf("expected the dispatcher to keep going to the next plan")
	}
}
