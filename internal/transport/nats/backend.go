// Package nats implements a third pluggable transport.Transport backend
// (SPEC_FULL.md §10 domain stack), alongside tcp and mpi: peers map to NATS
// subjects, BufferedSend stages encoded frames and a flush publishes each
// staged frame with its own Publish, and Receive
// drains a subscription channel. Grounded on ClusterCockpit-cc-backend's
// pkg/nats.Client — connection setup with reconnect/error handlers — wired
// to the framed message codec from pkg/message instead of that package's raw
// byte-slice Publish/Subscribe API.
package nats

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/fieldmux/fieldmux/internal/transport"
	"github.com/fieldmux/fieldmux/pkg/message"
)

func init() {
	transport.Register("nats", func(cfg transport.Config) (transport.Transport, error) {
		url := cfg.Extra["url"]
		if url == "" {
			url = nats.DefaultURL
		}
		return New(cfg, url)
	})
}

// Backend implements transport.Transport over NATS core pub/sub. Each peer
// owns a subject (cfg.Addresses[peer]); Send/BufferedSend publish framed
// messages to the destination's subject, and the backend subscribes to its
// own subject to receive.
type Backend struct {
	self      message.Peer
	servers   []message.Peer
	clients   []message.Peer
	subjects  map[message.Peer]string
	threshold int
	integrity bool

	conn *nats.Conn
	sub  *nats.Subscription

	incoming chan message.Message

	mu    sync.Mutex
	arena map[string][][]byte // subject -> pending encoded frames

	closed chan struct{}
	once   sync.Once
}

// New connects to the NATS server at url and subscribes to self's subject.
func New(cfg transport.Config, url string) (*Backend, error) {
	subject, ok := cfg.Addresses[cfg.Self]
	if !ok {
		return nil, &transport.Error{Kind: transport.Unreachable, Peer: cfg.Self.String(), Reason: "no subject configured"}
	}

	var opts []nats.Option
	opts = append(opts, nats.ReconnectHandler(func(*nats.Conn) {}))
	opts = append(opts, nats.DisconnectErrHandler(func(*nats.Conn, error) {}))

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, &transport.Error{Kind: transport.Unreachable, Peer: cfg.Self.String(), Reason: fmt.Sprintf("nats connect: %v", err)}
	}

	threshold := cfg.BufferThreshold
	if threshold <= 0 {
		threshold = transport.DefaultBufferThreshold
	}

	b := &Backend{
		self:      cfg.Self,
		servers:   cfg.Servers,
		clients:   cfg.Clients,
		subjects:  cfg.Addresses,
		threshold: threshold,
		integrity: cfg.Integrity,
		conn:      conn,
		incoming:  make(chan message.Message, 256),
		arena:     make(map[string][][]byte),
		closed:    make(chan struct{}),
	}

	sub, err := conn.Subscribe(subject, b.onMessage)
	if err != nil {
		conn.Close()
		return nil, &transport.Error{Kind: transport.Unreachable, Peer: cfg.Self.String(), Reason: fmt.Sprintf("nats subscribe: %v", err)}
	}
	b.sub = sub

	return b, nil
}

func (b *Backend) onMessage(m *nats.Msg) {
	msg, err := message.DecodeMessage(m.Data, b.integrity)
	if err != nil {
		return
	}
	select {
	case b.incoming <- msg:
	case <-b.closed:
	}
}

func (b *Backend) subjectFor(p message.Peer) (string, error) {
	s, ok := b.subjects[p]
	if !ok {
		return "", &transport.Error{Kind: transport.Unreachable, Peer: p.String(), Reason: "no subject configured"}
	}
	return s, nil
}

// Send publishes msg to its destination's subject immediately.
func (b *Backend) Send(ctx context.Context, msg message.Message) error {
	subject, err := b.subjectFor(msg.Destination)
	if err != nil {
		return err
	}
	frame, err := message.EncodeMessage(msg, b.integrity)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(subject, frame); err != nil {
		return &transport.Error{Kind: transport.Unreachable, Peer: msg.Destination.String(), Reason: err.Error()}
	}
	return nil
}

// BufferedSend stages msg's encoded frame in the destination subject's
// arena, flushing (one Publish per buffered frame, issued back to back) once
// the arena crosses the configured threshold.
func (b *Backend) BufferedSend(ctx context.Context, msg message.Message) error {
	subject, err := b.subjectFor(msg.Destination)
	if err != nil {
		return err
	}
	frame, err := message.EncodeMessage(msg, b.integrity)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.arena[subject] = append(b.arena[subject], frame)
	size := 0
	for _, f := range b.arena[subject] {
		size += len(f)
	}
	shouldFlush := size >= b.threshold
	b.mu.Unlock()

	if shouldFlush {
		return b.flushSubject(subject)
	}
	return nil
}

func (b *Backend) flushSubject(subject string) error {
	b.mu.Lock()
	pending := b.arena[subject]
	delete(b.arena, subject)
	b.mu.Unlock()

	for _, frame := range pending {
		if err := b.conn.Publish(subject, frame); err != nil {
			return &transport.Error{Kind: transport.Unreachable, Peer: subject, Reason: err.Error()}
		}
	}
	return nil
}

// Flush publishes every subject's pending arena.
func (b *Backend) Flush(ctx context.Context) error {
	b.mu.Lock()
	subjects := make([]string, 0, len(b.arena))
	for s := range b.arena {
		subjects = append(subjects, s)
	}
	b.mu.Unlock()

	for _, s := range subjects {
		if err := b.flushSubject(s); err != nil {
			return err
		}
	}
	return nil
}

// Receive blocks until the next decoded Message arrives on self's subject.
func (b *Backend) Receive(ctx context.Context) (message.Message, error) {
	select {
	case msg, ok := <-b.incoming:
		if !ok {
			return message.Message{}, &transport.Error{Kind: transport.Closed, Peer: b.self.String(), Reason: "transport closed"}
		}
		return msg, nil
	case <-ctx.Done():
		return message.Message{}, &transport.Error{Kind: transport.Timeout, Peer: b.self.String(), Reason: ctx.Err().Error()}
	case <-b.closed:
		return message.Message{}, &transport.Error{Kind: transport.Closed, Peer: b.self.String(), Reason: "transport closed"}
	}
}

func (b *Backend) LocalPeer() message.Peer     { return b.self }
func (b *Backend) ServerPeers() []message.Peer { return b.servers }
func (b *Backend) ClientCount() int            { return len(b.clients) }
func (b *Backend) ServerCount() int            { return len(b.servers) }

// Close unsubscribes and closes the NATS connection without draining it.
func (b *Backend) Close() error {
	var err error
	b.once.Do(func() {
		close(b.closed)
		if b.sub != nil {
			b.sub.Unsubscribe()
		}
		b.conn.Close()
		close(b.incoming)
	})
	return err
}
