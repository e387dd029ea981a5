// Package transport defines the abstract communication layer from spec.md
// §4.2 and its concrete backends (TCP, MPI, NATS). Grounded on the teacher's
// pkg/mcast/core.Transport interface shape (Broadcast/Unicast/Listen/Close),
// generalized to the blocking-send / buffered-send / fair-receive contract
// spec.md actually specifies.
package transport

import (
	"context"

	"github.com/fieldmux/fieldmux/pkg/message"
)

// Transport is the abstract operation set every backend implements.
// send/bufferedSend/receive/localPeer/serverPeers map directly onto spec.md
// §4.2's operation list.
type Transport interface {
	// Send blocks until msg is handed to the destination connection/rank,
	// guaranteeing FIFO delivery per destination from this source.
	Send(ctx context.Context, msg message.Message) error

	// BufferedSend coalesces msg into a per-destination buffer, flushed
	// automatically once it reaches Config.BufferThreshold or explicitly via
	// Flush.
	BufferedSend(ctx context.Context, msg message.Message) error

	// Flush forces every buffered-but-unsent message out immediately.
	Flush(ctx context.Context) error

	// Receive blocks until the next message is available from any peer.
	// Fair across peers over long horizons; no cross-source ordering.
	Receive(ctx context.Context) (message.Message, error)

	LocalPeer() message.Peer
	ServerPeers() []message.Peer
	ClientCount() int
	ServerCount() int

	Close() error
}

// Constructor builds a Transport from an already-resolved peer set. The
// name → constructor registry below realizes spec.md §9 design notes'
// "registry-plus-factory" guidance for the Transport hierarchy.
type Constructor func(cfg Config) (Transport, error)

// Config is the subset of internal/config.Tree a backend needs to come up:
// its own identity, the full peer set, and tuning knobs.
type Config struct {
	Self            message.Peer
	Servers         []message.Peer
	Clients         []message.Peer
	BufferThreshold int // bytes; spec.md §4.2 default 64 MiB
	Integrity       bool
	// Addresses resolves each Peer to a backend-specific address: "host:port"
	// for TCP, a NATS subject for the nats backend, unused by MPI (ranks are
	// derived from Servers/Clients order instead).
	Addresses map[message.Peer]string
	Extra     map[string]string // backend-specific (NATS URL, MPI arena size, ...)
}

const DefaultBufferThreshold = 64 * 1024 * 1024

var registry = map[string]Constructor{}

// Register adds a named backend constructor. Called from each backend
// package's init().
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// New builds the named backend's Transport, spec.md §6's `transport: "mpi" |
// "tcp"` config key (generalized to any registered name, including "nats").
func New(name string, cfg Config) (Transport, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &Error{Kind: Unreachable, Reason: "no transport backend registered as " + name}
	}
	return ctor(cfg)
}
