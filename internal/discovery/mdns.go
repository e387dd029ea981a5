package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"

	"github.com/fieldmux/fieldmux/pkg/message"
)

// MDNSStrategy discovers peers advertising the same service tag on the local
// network, grounded on orbas1-Synnergy's core/network.go
// (mdns.NewMdnsService(h, cfg.DiscoveryTag, n) with the node itself as
// Notifee). A dedicated libp2p host is created purely to run the mDNS
// service; it carries no application data, since field transport stays on
// the backend configured by spec.md §6 (tcp/mpi/nats).
type MDNSStrategy struct {
	// ServiceTag identifies the discovery domain, e.g. "multio-server".
	ServiceTag string
	// Group assigned to every discovered peer.
	Group string
	// Window bounds how long Discover waits collecting announcements
	// before returning what it has.
	Window time.Duration
}

type mdnsNotifee struct {
	mu     sync.Mutex
	found  []peer.AddrInfo
	selfID peer.ID
}

func (n *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if info.ID == n.selfID {
		return
	}
	for _, existing := range n.found {
		if existing.ID == info.ID {
			return
		}
	}
	n.found = append(n.found, info)
}

func (n *mdnsNotifee) snapshot() []peer.AddrInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]peer.AddrInfo, len(n.found))
	copy(out, n.found)
	return out
}

// Discover starts a throwaway libp2p host, runs mDNS for Window, and returns
// every distinct peer announcement collected, each mapped to its first
// listen address string.
func (s MDNSStrategy) Discover(ctx context.Context) ([]ResolvedPeer, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/0.0.0.0/tcp/0"))
	if err != nil {
		return nil, err
	}
	defer h.Close()

	notifee := &mdnsNotifee{selfID: h.ID()}
	svc := mdns.NewMdnsService(h, s.ServiceTag, notifee)
	if err := svc.Start(); err != nil {
		return nil, err
	}
	defer svc.Close()

	window := s.Window
	if window <= 0 {
		window = 3 * time.Second
	}

	select {
	case <-time.After(window):
	case <-ctx.Done():
	}

	found := notifee.snapshot()
	peers := make([]ResolvedPeer, 0, len(found))
	for i, info := range found {
		addr := ""
		if len(info.Addrs) > 0 {
			addr = info.Addrs[0].String()
		}
		peers = append(peers, ResolvedPeer{
			Peer:    message.NewPeer(s.Group, uint64(i)),
			Address: addr,
		})
	}
	return peers, nil
}
