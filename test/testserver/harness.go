// Package testserver wires a real server (dispatcher + aggregation + sink)
// and one or more real pkg/client.Client handles together over the
// in-process MPI transport backend, driving the same code paths a real
// multi-process deployment would use, without sockets. Grounded on spec.md
// §8's end-to-end scenarios, which spec.md frames in exactly these terms
// ("the sink receives exactly one payload...").
package testserver

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/fieldmux/fieldmux/internal/action/aggregation"
	"github.com/fieldmux/fieldmux/internal/action/sink"
	"github.com/fieldmux/fieldmux/internal/dispatch"
	"github.com/fieldmux/fieldmux/internal/domain"
	"github.com/fieldmux/fieldmux/internal/plan"
	"github.com/fieldmux/fieldmux/internal/transport"
	_ "github.com/fieldmux/fieldmux/internal/transport/mpi"
	"github.com/fieldmux/fieldmux/pkg/client"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// MemSink collects every payload written to it, keyed by the name the Sink
// action derived (spec.md §4.8's FieldIdentifier-derived object name).
type MemSink struct {
	mu      sync.Mutex
	written map[string][][]byte
	flushes int
}

func newMemSink() *MemSink {
	return &MemSink{written: make(map[string][][]byte)}
}

func (s *MemSink) Write(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[name] = append(s.written[name], append([]byte(nil), data...))
	return nil
}

func (s *MemSink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

// Payloads returns every payload written under name, in write order.
func (s *MemSink) Payloads(name string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.written[name]...)
}

// FlushCount reports how many times Flush has been called.
func (s *MemSink) FlushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// TotalWrites counts every payload written across every name.
func (s *MemSink) TotalWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.written {
		n += len(v)
	}
	return n
}

// Harness wires one server (aggregation → sink) and clientCount real
// pkg/client.Client handles over the in-process MPI backend.
type Harness struct {
	Registry *domain.Registry
	Sink     *MemSink
	Clients  []*client.Client

	serverTransport transport.Transport
	server          *plan.Server
	serverDone      chan error
}

// New builds a Harness. Callers install domain descriptors by sending real
// Domain/Mask messages through a Client (pkg/client.Client.WriteDomain)
// before writing Fields that need reassembly (spec.md §3's DomainMap
// contract) — Harness itself stays out of that wire path.
func New(t *testing.T, clientCount int) *Harness {
	t.Helper()
	// A fresh UUID per Harness keeps independent test cases' peer groups
	// from colliding on the mpi backend's process-wide sharedWorld mailbox,
	// without the ceremony of a package-level sequence counter.
	run := uuid.NewString()
	serverGroup := peerGroup("servers", run)
	clientGroup := peerGroup("clients", run)

	serverPeer := message.NewPeer(serverGroup, 0)
	clientPeers := make([]message.Peer, clientCount)
	for i := range clientPeers {
		clientPeers[i] = message.NewPeer(clientGroup, uint64(i))
	}
	servers := []message.Peer{serverPeer}

	registry := domain.NewRegistry(clientCount)
	memSink := newMemSink()

	sinkAction := sink.New(nil, memSink, nil, nil, nil)
	aggAction := aggregation.New(sinkAction, registry, message.DefaultHashKeys, clientCount, nil, nil)
	dispatcher := plan.New([]plan.Plan{{Name: "default", Predicate: plan.MatchAll, Head: aggAction}}, nil)

	serverTr, err := transport.New("mpi", transport.Config{
		Self:    serverPeer,
		Servers: servers,
		Clients: clientPeers,
	})
	if err != nil {
		t.Fatalf("start server transport: %v", err)
	}

	server := plan.NewServer(serverTr, dispatcher, clientPeers, nil)

	h := &Harness{
		Registry:        registry,
		Sink:            memSink,
		serverTransport: serverTr,
		server:          server,
		serverDone:      make(chan error, 1),
	}

	for i, cp := range clientPeers {
		clientTr, err := transport.New("mpi", transport.Config{
			Self:    cp,
			Servers: servers,
			Clients: clientPeers,
		})
		if err != nil {
			t.Fatalf("start client %d transport: %v", i, err)
		}
		selector := dispatch.NewSelector(servers, uint64(i), clientCount, 0, message.DefaultHashKeys, dispatch.HashedToSingle)
		h.Clients = append(h.Clients, client.New(clientTr, selector, false, nil, nil))
	}

	return h
}

// Run starts the server loop in the background; cancel ctx (or send Close
// from every client) to let it return.
func (h *Harness) Run(ctx context.Context) {
	go func() { h.serverDone <- h.server.Run(ctx) }()
}

// Wait blocks until the server loop returns and reports its error, if any.
func (h *Harness) Wait() error {
	return <-h.serverDone
}

func peerGroup(kind, run string) string {
	return "testserver-" + kind + "-" + run
}
