package mpi

import (
	"context"
	"testing"
	"time"

	"github.com/fieldmux/fieldmux/internal/transport"
	"github.com/fieldmux/fieldmux/pkg/message"
)

func TestBackend_SendReceiveAcrossRanks(t *testing.T) {
	server := message.NewPeer("servers", 0)
	client := message.NewPeer("clients", 0)
	w := newWorld()

	srv, err := New(transport.Config{Self: server, Servers: []message.Peer{server}, Clients: []message.Peer{client}})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	srv.w = w
	cli, err := New(transport.Config{Self: client, Servers: []message.Peer{server}, Clients: []message.Peer{client}})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cli.w = w
	defer srv.Close()
	defer cli.Close()

	md := message.NewMetadata()
	out := message.NewMessage(message.TagField, client, server, md, []byte{9, 9})

	if err := cli.Send(context.Background(), out); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	in, err := srv.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !in.Source.Equal(client) || string(in.Payload) != string(out.Payload) {
		t.Fatalf("unexpected message: %#v", in)
	}
}

func TestBackend_BufferedSendFlushesAtThreshold(t *testing.T) {
	server := message.NewPeer("servers", 0)
	client := message.NewPeer("clients", 0)
	w := newWorld()

	cfg := transport.Config{Self: server, Servers: []message.Peer{server}, Clients: []message.Peer{client}, BufferThreshold: 4}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	srv.w = w
	cfg.Self = client
	cli, err := New(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cli.w = w
	defer srv.Close()
	defer cli.Close()

	md := message.NewMetadata()
	msg := message.NewMessage(message.TagField, client, server, md, []byte{1, 2, 3, 4, 5})
	if err := cli.BufferedSend(context.Background(), msg); err != nil {
		t.Fatalf("buffered send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := srv.Receive(ctx); err != nil {
		t.Fatalf("expected the buffer to have auto-flushed past the threshold: %v", err)
	}
}
