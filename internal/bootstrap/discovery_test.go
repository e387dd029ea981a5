package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/fieldmux/fieldmux/internal/config"
	"github.com/fieldmux/fieldmux/internal/discovery"
)

func TestResolveServerAddresses_NilWhenUnconfigured(t *testing.T) {
	tree := &config.Tree{Transport: "tcp", Group: "g", Count: 1}
	addrs, err := ResolveServerAddresses(context.Background(), tree)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if addrs != nil {
		t.Fatalf("expected no addresses with discovery unconfigured, got %v", addrs)
	}
}

func TestBuildDiscoveryStrategy_DNS(t *testing.T) {
	tree := &config.Tree{Discovery: &config.Discovery{
		Strategy: "dns",
		SRVName:  "_multio-server._tcp.example.internal.",
		Resolver: "127.0.0.1:53",
	}}
	strat, err := buildDiscoveryStrategy(tree, "g-servers")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	srv, ok := strat.(discovery.SRVStrategy)
	if !ok {
		t.Fatalf("expected discovery.SRVStrategy, got %T", strat)
	}
	if srv.Service != tree.Discovery.SRVName || srv.Resolver != tree.Discovery.Resolver || srv.Group != "g-servers" {
		t.Fatalf("unexpected strategy fields: %+v", srv)
	}
}

func TestBuildDiscoveryStrategy_MDNS(t *testing.T) {
	tree := &config.Tree{Discovery: &config.Discovery{
		Strategy:      "mdns",
		Tag:           "multio-server",
		WindowSeconds: 2,
	}}
	strat, err := buildDiscoveryStrategy(tree, "g-servers")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m, ok := strat.(discovery.MDNSStrategy)
	if !ok {
		t.Fatalf("expected discovery.MDNSStrategy, got %T", strat)
	}
	if m.ServiceTag != "multio-server" || m.Group != "g-servers" || m.Window != 2*time.Second {
		t.Fatalf("unexpected strategy fields: %+v", m)
	}
}

func TestBuildDiscoveryStrategy_RejectsUnknownStrategy(t *testing.T) {
	tree := &config.Tree{Discovery: &config.Discovery{Strategy: "carrier-pigeon"}}
	if _, err := buildDiscoveryStrategy(tree, "g-servers"); err == nil {
		t.Fatalf("expected an error for an unrecognized discovery strategy")
	}
}

func TestBuildDiscoveryStrategy_NilWhenUnconfigured(t *testing.T) {
	tree := &config.Tree{}
	strat, err := buildDiscoveryStrategy(tree, "g-servers")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strat != nil {
		t.Fatalf("expected a nil Strategy, got %v", strat)
	}
}
