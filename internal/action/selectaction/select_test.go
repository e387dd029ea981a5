package selectaction

import (
	"context"
	"testing"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/pkg/message"
)

type collector struct {
	*action.Base
	received []message.Message
}

func newCollector() *collector {
	c := &collector{}
	c.Base = action.NewBase("collect", nil, nil, nil, func(ctx context.Context, msg message.Message, next action.Action) error {
		c.received = append(c.received, msg)
		return nil
	})
	return c
}

func fieldWith(category string) message.Message {
	md := message.NewMetadata()
	md.Set("category", message.StringValue(category))
	return message.NewMessage(message.TagField, message.Peer{}, message.Peer{}, md, nil)
}

func TestSelect_DropsNonMatchingFields(t *testing.T) {
	c := newCollector()
	sel := New(c, []Match{{Key: "category", Values: []string{"ocean"}}}, nil, nil)

	if err := sel.Execute(context.Background(), fieldWith("ocean")); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := sel.Execute(context.Background(), fieldWith("atmosphere")); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(c.received) != 1 {
		t.Fatalf("expected exactly one forwarded field, got %d", len(c.received))
	}
}

func TestSelect_ControlMessagesAlwaysPass(t *testing.T) {
	c := newCollector()
	sel := New(c, []Match{{Key: "category", Values: []string{"ocean"}}}, nil, nil)

	close := message.NewMessage(message.TagClose, message.Peer{}, message.Peer{}, message.NewMetadata(), nil)
	if err := sel.Execute(context.Background(), close); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(c.received) != 1 {
		t.Fatalf("expected the control message to pass through regardless of predicate")
	}
}
