// Package discovery implements the peer-discovery mechanisms named in
// spec.md §2's system overview but left to configuration spelling out
// addresses by hand. SPEC_FULL.md §10 adds two pluggable strategies: DNS SRV
// records (github.com/miekg/dns) and LAN mDNS
// (github.com/libp2p/go-libp2p/p2p/discovery/mdns), both resolving to the
// same ResolvedPeer shape that internal/transport.Config.Addresses expects.
package discovery

import (
	"context"

	"github.com/fieldmux/fieldmux/pkg/message"
)

// ResolvedPeer pairs a transport Peer with the dial address a backend should
// use to reach it.
type ResolvedPeer struct {
	Peer    message.Peer
	Address string
}

// Strategy discovers the current set of reachable peers in a named group.
// Implementations may block until at least one discovery round completes.
type Strategy interface {
	Discover(ctx context.Context) ([]ResolvedPeer, error)
}
