package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/transport"
	"github.com/fieldmux/fieldmux/pkg/message"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

// TestBackend_ClientServerRoundTrip covers the basic spec.md §4.3 shape: a
// client dials a server, sends a Field message, the server receives it.
func TestBackend_ClientServerRoundTrip(t *testing.T) {
	server := message.NewPeer("servers", 0)
	client := message.NewPeer("clients", 0)
	addr := freeAddr(t)

	serverCfg := transport.Config{
		Self:      server,
		Servers:   []message.Peer{server},
		Clients:   []message.Peer{client},
		Addresses: map[message.Peer]string{server: addr},
	}
	srv, err := New(serverCfg, nil)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	defer srv.Close()

	clientCfg := transport.Config{
		Self:      client,
		Servers:   []message.Peer{server},
		Clients:   []message.Peer{client},
		Addresses: map[message.Peer]string{server: addr},
	}
	cli, err := New(clientCfg, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer cli.Close()

	md := message.NewMetadata()
	md.Set("category", message.StringValue("ocean"))
	out := message.NewMessage(message.TagField, client, server, md, []byte{1, 2, 3, 4})

	if err := cli.Send(context.Background(), out); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	in, err := srv.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if in.Tag != message.TagField || !in.Source.Equal(client) {
		t.Fatalf("unexpected message: %#v", in)
	}
	if string(in.Payload) != string(out.Payload) {
		t.Fatalf("payload mismatch: %v vs %v", in.Payload, out.Payload)
	}
}

func TestBackend_DialUnreachableFails(t *testing.T) {
	server := message.NewPeer("servers", 0)
	client := message.NewPeer("clients", 0)

	// Nothing listens here; dialWithRetry should fail after its retries
	// rather than hang (shortened here is not possible without changing
	// the package constants, so this test only checks that an error is
	// returned on a context that's already cancelled to keep it fast).
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dialWithRetry(ctx, "127.0.0.1:1", logging.NewNop())
	if err == nil {
		t.Fatalf("expected an error dialing with a cancelled context")
	}

	_ = server
	_ = client
}
