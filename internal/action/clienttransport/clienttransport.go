// Package clienttransport implements spec.md §4.5's client-side Transport
// action: the head of a client's plan, it picks the destination server(s)
// for each outgoing message via an internal/dispatch.Selector and hands the
// message to an internal/transport.Transport.
package clienttransport

import (
	"context"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/internal/dispatch"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/internal/transport"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// Action implements spec.md §4.5. It has no next action: it is the
// client-side chain's tail, handing messages off to the wire instead of to
// another in-process action.
type Action struct {
	*action.Base
	transport transport.Transport
	selector  *dispatch.Selector
	buffered  bool
}

// New builds a client-side Transport action. When buffered is true,
// outgoing messages use Transport.BufferedSend (spec.md §4.2's coalescing
// arena) instead of a blocking Send per message.
func New(tr transport.Transport, selector *dispatch.Selector, buffered bool, reporter stats.Reporter, log logging.Logger) *Action {
	a := &Action{transport: tr, selector: selector, buffered: buffered}
	a.Base = action.NewBase("client-transport", nil, reporter, log, a.run)
	return a
}

func (a *Action) run(ctx context.Context, msg message.Message, _ action.Action) error {
	if msg.Metadata.GetBoolOr("toAllServers", false) {
		return a.broadcast(ctx, msg)
	}

	dest, err := a.selector.Choose(msg.Metadata)
	if err != nil {
		return err
	}
	out := msg
	out.Destination = dest
	return a.send(ctx, out)
}

func (a *Action) broadcast(ctx context.Context, msg message.Message) error {
	for _, server := range a.transport.ServerPeers() {
		out := msg
		out.Destination = server
		out.Payload = append([]byte(nil), msg.Payload...)
		if err := a.send(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func (a *Action) send(ctx context.Context, msg message.Message) error {
	if a.buffered {
		return a.transport.BufferedSend(ctx, msg)
	}
	return a.transport.Send(ctx, msg)
}

// Flush forces out any buffered-but-unsent messages, spec.md §4.2's
// explicit flush path.
func (a *Action) Flush(ctx context.Context) error {
	return a.transport.Flush(ctx)
}
