// Package encode implements spec.md §4.8's Encode action: given a codec
// identifier, calls an external encoder and retags the message (Field →
// Grib for the grib codec). The codec itself is the "external encoder"
// spec.md §1 puts out of scope; only the Codec interface and the retagging
// machinery that drives it are in scope.
package encode

import (
	"context"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// Codec is the external encoder boundary: given a payload and its metadata,
// produce a new encoded byte buffer.
type Codec interface {
	Encode(payload []byte, md message.Metadata) ([]byte, error)
	// ResultTag is the Tag the encoded message should carry, e.g.
	// message.TagGrib for the grib codec.
	ResultTag() message.Tag
}

// RawCodec is the identity codec ("raw" in spec.md §6): it passes the
// payload through unchanged and keeps the Field tag. Used when no external
// encoding step is configured.
type RawCodec struct{}

func (RawCodec) Encode(payload []byte, _ message.Metadata) ([]byte, error) { return payload, nil }
func (RawCodec) ResultTag() message.Tag                                   { return message.TagField }

// Action implements spec.md §4.8's Encode.
type Action struct {
	*action.Base
	codec Codec
}

// New builds an Encode action driving codec for every Field message;
// non-Field messages pass through untouched.
func New(next action.Action, codec Codec, reporter stats.Reporter, log logging.Logger) *Action {
	if codec == nil {
		codec = RawCodec{}
	}
	a := &Action{codec: codec}
	a.Base = action.NewBase("encode", next, reporter, log, a.run)
	return a
}

func (a *Action) run(ctx context.Context, msg message.Message, next action.Action) error {
	if msg.Tag != message.TagField {
		return action.ExecuteNext(ctx, next, msg)
	}

	encoded, err := a.codec.Encode(msg.Payload, msg.Metadata)
	if err != nil {
		return err
	}

	out := msg
	out.Payload = encoded
	out.Tag = a.codec.ResultTag()
	return action.ExecuteNext(ctx, next, out)
}
