package plan

import (
	"context"
	"errors"

	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/transport"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// Server drives spec.md §4.9's main loop: receive, feed the dispatcher,
// and track per-client Close messages so the loop stops once every client
// has said goodbye (spec.md §5's "a server that receives Close from every
// client finishes draining buffered work then exits").
type Server struct {
	transport transport.Transport
	dispatch  *Dispatcher
	log       logging.Logger

	clients []message.Peer
	closed  map[message.Peer]bool
}

// NewServer builds a Server over tr and d, expecting a Close from each of
// clients before the loop stops on its own.
func NewServer(tr transport.Transport, d *Dispatcher, clients []message.Peer, log logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	return &Server{
		transport: tr,
		dispatch:  d,
		log:       log,
		clients:   append([]message.Peer(nil), clients...),
		closed:    make(map[message.Peer]bool, len(clients)),
	}
}

// Run executes spec.md §4.9's main loop until every client has closed, the
// context is cancelled, or the dispatcher returns an Abort-policy error.
func (s *Server) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := s.transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if err := s.dispatch.Feed(ctx, msg); err != nil {
			return err
		}

		if msg.Tag == message.TagClose {
			s.closed[msg.Source] = true
			if s.allClientsClosed() {
				return nil
			}
		}
	}
}

func (s *Server) allClientsClosed() bool {
	if len(s.clients) == 0 {
		return false
	}
	for _, c := range s.clients {
		if !s.closed[c] {
			return false
		}
	}
	return true
}
