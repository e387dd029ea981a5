package encode

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

func TestEncode_RawCodecPassesPayloadThrough(t *testing.T) {
	c := newCollector()
	enc := New(c, RawCodec{}, nil, nil)

	in := message.NewMessage(message.TagField, message.Peer{}, message.Peer{}, message.NewMetadata(), []byte{1, 2, 3})
	if err := enc.Execute(context.Background(), in); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(c.received) != 1 {
		t.Fatalf("expected one forwarded message, got %d", len(c.received))
	}
	got := c.received[0]
	if got.Tag != message.TagField {
		t.Fatalf("expected raw codec to keep TagField, got %v", got.Tag)
	}
	if string(got.Payload) != string([]byte{1, 2, 3}) {
		t.Fatalf("expected payload unchanged, got %v", got.Payload)
	}
}

type fakeGribEncoder struct{}

func (fakeGribEncoder) EncodeGrib(payload []byte, _ message.Metadata) ([]byte, error) {
	out := make([]byte, len(payload))
	copy(out, payload)
	return append(out, 0xFF), nil
}

func TestEncode_GribCodecRetagsMessage(t *testing.T) {
	c := newCollector()
	enc := New(c, GribCodec{Encoder: fakeGribEncoder{}}, nil, nil)

	in := message.NewMessage(message.TagField, message.Peer{}, message.Peer{}, message.NewMetadata(), []byte{1, 2, 3})
	if err := enc.Execute(context.Background(), in); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(c.received) != 1 {
		t.Fatalf("expected one forwarded message, got %d", len(c.received))
	}
	got := c.received[0]
	if got.Tag != message.TagGrib {
		t.Fatalf("expected TagGrib after encoding, got %v", got.Tag)
	}
	if len(got.Payload) != 4 || got.Payload[3] != 0xFF {
		t.Fatalf("expected encoded payload with trailer byte, got %v", got.Payload)
	}
}

func TestEncode_NonFieldMessagesPassThroughUnencoded(t *testing.T) {
	c := newCollector()
	enc := New(c, GribCodec{Encoder: fakeGribEncoder{}}, nil, nil)

	closeMsg := message.NewMessage(message.TagClose, message.Peer{}, message.Peer{}, message.NewMetadata(), nil)
	if err := enc.Execute(context.Background(), closeMsg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(c.received) != 1 || c.received[0].Tag != message.TagClose {
		t.Fatalf("expected control message to pass through with its original tag")
	}
}
