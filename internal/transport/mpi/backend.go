// Package mpi implements spec.md §4.4's MPI backend against a pure-Go,
// in-process Communicator that models the same send/probe/receive contract
// a real MPI library exposes (point-to-point blocking send, a rank-indexed
// send arena for bufferedSend, probe-then-receive for the consumer side).
//
// No library in the retrieved pack offers a pure-Go MPI binding — a real one
// requires cgo against a system MPI installation, outside the pure-Go
// ecosystem this module otherwise draws from (DESIGN.md's one documented
// stdlib-only exception). The Communicator here plays the role a cgo
// binding's Go wrapper would play: every call above this file (the
// transport.Transport methods) is written against the same contract a real
// binding would expose, so swapping the simulated Communicator for a cgo one
// later touches only this file.
package mpi

import (
	"context"
	"sync"

	"github.com/fieldmux/fieldmux/internal/transport"
	"github.com/fieldmux/fieldmux/pkg/message"
)

func init() {
	transport.Register("mpi", func(cfg transport.Config) (transport.Transport, error) {
		return New(cfg)
	})
}

// rank identifies one participant in the shared Communicator. Ranks are
// process-global in a real MPI job; here they're assigned by position in the
// combined servers+clients peer list, consistently across every Backend
// sharing the same *world.
type rank int

// world is the shared, in-process stand-in for an MPI communicator: every
// Backend constructed against the same *world is a "rank" inside it. Tests
// and an in-process multi-server harness share one world; a real deployment
// would instead link against an actual MPI runtime.
type world struct {
	mu      sync.Mutex
	mailbox map[rank]chan message.Message
}

func newWorld() *world {
	return &world{mailbox: make(map[rank]chan message.Message)}
}

func (w *world) mailboxFor(r rank) chan message.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.mailbox[r]
	if !ok {
		ch = make(chan message.Message, 4096)
		w.mailbox[r] = ch
	}
	return ch
}

// sharedWorld is the world every Backend built by New joins — every
// in-process MPI backend in one process shares it, simulating ranks within a
// single MPI_COMM_WORLD. Tests that need an isolated world assign Backend.w
// directly.
var sharedWorld = newWorld()

// Backend implements transport.Transport by posting directly into another
// rank's mailbox instead of going over a socket — the in-process analogue of
// MPI_Send/MPI_Recv.
type Backend struct {
	self    message.Peer
	servers []message.Peer
	clients []message.Peer

	selfRank  rank
	peerRanks map[message.Peer]rank

	w *world

	threshold int
	mu        sync.Mutex
	arena     map[rank][]message.Message // bufferedSend staging area per destination rank

	closed chan struct{}
	once   sync.Once
}

// New builds an MPI Backend. Ranks partition into a client sub-group and a
// server sub-group by configuration, per spec.md §4.4.
func New(cfg transport.Config) (*Backend, error) {
	peerRanks := make(map[message.Peer]rank)
	r := rank(0)
	for _, p := range cfg.Servers {
		peerRanks[p] = r
		r++
	}
	for _, p := range cfg.Clients {
		peerRanks[p] = r
		r++
	}

	selfRank, ok := peerRanks[cfg.Self]
	if !ok {
		return nil, &transport.Error{Kind: transport.Unreachable, Peer: cfg.Self.String(), Reason: "self peer not present in servers/clients"}
	}

	threshold := cfg.BufferThreshold
	if threshold <= 0 {
		threshold = transport.DefaultBufferThreshold
	}

	b := &Backend{
		self:      cfg.Self,
		servers:   cfg.Servers,
		clients:   cfg.Clients,
		selfRank:  selfRank,
		peerRanks: peerRanks,
		w:         sharedWorld,
		threshold: threshold,
		arena:     make(map[rank][]message.Message),
		closed:    make(chan struct{}),
	}
	// Register our own mailbox eagerly so peers can send to us before we
	// issue our first Receive.
	b.w.mailboxFor(b.selfRank)
	return b, nil
}

func (b *Backend) rankOf(p message.Peer) (rank, error) {
	r, ok := b.peerRanks[p]
	if !ok {
		return 0, &transport.Error{Kind: transport.Unreachable, Peer: p.String(), Reason: "unknown rank for peer"}
	}
	return r, nil
}

// Send blocks (in the sense that it synchronously posts) to the destination
// rank's mailbox, matching MPI_Send's point-to-point blocking semantics.
func (b *Backend) Send(ctx context.Context, msg message.Message) error {
	dst, err := b.rankOf(msg.Destination)
	if err != nil {
		return err
	}
	select {
	case b.w.mailboxFor(dst) <- msg:
		return nil
	case <-ctx.Done():
		return &transport.Error{Kind: transport.Timeout, Peer: msg.Destination.String(), Reason: ctx.Err().Error()}
	case <-b.closed:
		return &transport.Error{Kind: transport.Closed, Peer: msg.Destination.String(), Reason: "transport closed"}
	}
}

// BufferedSend accumulates msg into a rank-indexed arena, flushed as one
// batch of posts once the arena's payload size crosses the threshold.
func (b *Backend) BufferedSend(ctx context.Context, msg message.Message) error {
	dst, err := b.rankOf(msg.Destination)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.arena[dst] = append(b.arena[dst], msg)
	size := 0
	for _, m := range b.arena[dst] {
		size += len(m.Payload)
	}
	shouldFlush := size >= b.threshold
	b.mu.Unlock()

	if shouldFlush {
		return b.flushRank(ctx, dst)
	}
	return nil
}

func (b *Backend) flushRank(ctx context.Context, r rank) error {
	b.mu.Lock()
	pending := b.arena[r]
	delete(b.arena, r)
	b.mu.Unlock()

	mailbox := b.w.mailboxFor(r)
	for _, m := range pending {
		select {
		case mailbox <- m:
		case <-ctx.Done():
			return &transport.Error{Kind: transport.Timeout, Reason: ctx.Err().Error()}
		case <-b.closed:
			return &transport.Error{Kind: transport.Closed, Reason: "transport closed"}
		}
	}
	return nil
}

// Flush posts every rank's pending arena.
func (b *Backend) Flush(ctx context.Context) error {
	b.mu.Lock()
	ranks := make([]rank, 0, len(b.arena))
	for r := range b.arena {
		ranks = append(ranks, r)
	}
	b.mu.Unlock()

	for _, r := range ranks {
		if err := b.flushRank(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Receive probes its own mailbox for a message from any source, the
// in-process analogue of MPI_Probe(MPI_ANY_SOURCE) followed by a matching
// MPI_Recv sized to the probed message.
func (b *Backend) Receive(ctx context.Context) (message.Message, error) {
	mailbox := b.w.mailboxFor(b.selfRank)
	select {
	case msg, ok := <-mailbox:
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

// Close signals pending Send/Receive calls to unblock. It does not close the
// shared mailbox channels, since other ranks in the same world may still be
// live.
func (b *Backend) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}
