package plan

import (
	"context"
	"io"
	"testing"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/pkg/message"
)

type queueTransport struct {
	queue []message.Message
	pos   int
}

func (q *queueTransport) Send(context.Context, message.Message) error         { return nil }
func (q *queueTransport) BufferedSend(context.Context, message.Message) error { return nil }
func (q *queueTransport) Flush(context.Context) error                        { return nil }

func (q *queueTransport) Receive(context.Context) (message.Message, error) {
	if q.pos >= len(q.queue) {
		return message.Message{}, io.EOF
	}
	msg := q.queue[q.pos]
	q.pos++
	return msg, nil
}

func (q *queueTransport) LocalPeer() message.Peer     { return message.Peer{} }
func (q *queueTransport) ServerPeers() []message.Peer { return nil }
func (q *queueTransport) ClientCount() int            { return 0 }
func (q *queueTransport) ServerCount() int            { return 0 }
func (q *queueTransport) Close() error                { return nil }

func closeMessage(source message.Peer) message.Message {
	return message.NewMessage(message.TagClose, source, message.Peer{}, message.NewMetadata(), nil)
}

func TestServer_StopsOnceEveryClientHasClosed(t *testing.T) {
	client0 := message.NewPeer("clients", 0)
	client1 := message.NewPeer("clients", 1)

	counted := newRecorder("sink", nil)
	d := New([]Plan{{Name: "catch-all", Predicate: MatchAll, Head: counted}}, nil)

	tr := &queueTransport{queue: []message.Message{
		closeMessage(client0),
		closeMessage(client1),
	}}

	s := NewServer(tr, d, []message.Peer{client0, client1}, nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(counted.received) != 2 {
		t.Fatalf("expected both Close messages to reach the dispatcher, got %d", len(counted.received))
	}
}

func TestServer_KeepsRunningUntilAllClientsClose(t *testing.T) {
	client0 := message.NewPeer("clients", 0)
	client1 := message.NewPeer("clients", 1)

	counted := newRecorder("sink", nil)
	d := New([]Plan{{Name: "catch-all", Predicate: MatchAll, Head: counted}}, nil)

	tr := &queueTransport{queue: []message.Message{
		closeMessage(client0),
	}}

	s := NewServer(tr, d, []message.Peer{client0, client1}, nil)
	err := s.Run(context.Background())
	if err == nil {
		t.Fatalf("expected Run to keep receiving past the single close and hit EOF")
	}
}

var _ action.Action = (*recorder)(nil)
