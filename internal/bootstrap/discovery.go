package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldmux/fieldmux/internal/config"
	"github.com/fieldmux/fieldmux/internal/discovery"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// buildDiscoveryStrategy turns tree.Discovery into a discovery.Strategy
// resolving peers into group, or nil if discovery isn't configured.
func buildDiscoveryStrategy(tree *config.Tree, group string) (discovery.Strategy, error) {
	d := tree.Discovery
	if d == nil {
		return nil, nil
	}
	switch d.Strategy {
	case "dns":
		return discovery.SRVStrategy{Service: d.SRVName, Resolver: d.Resolver, Group: group}, nil
	case "mdns":
		window := time.Duration(d.WindowSeconds) * time.Second
		return discovery.MDNSStrategy{ServiceTag: d.Tag, Group: group, Window: window}, nil
	default:
		return nil, fmt.Errorf("discovery: unrecognized strategy %q", d.Strategy)
	}
}

// ResolveServerAddresses runs tree.Discovery's configured strategy, if any,
// and returns the resolved server peers keyed exactly like ServerPeers
// produces them (same "<group>-servers" group, same index order), so the
// result can be merged straight into BuildTransportConfig's addresses.
// Returns a nil map with no error when discovery isn't configured.
func ResolveServerAddresses(ctx context.Context, tree *config.Tree) (map[message.Peer]string, error) {
	strategy, err := buildDiscoveryStrategy(tree, tree.Group+"-servers")
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, nil
	}

	resolved, err := strategy.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	addresses := make(map[message.Peer]string, len(resolved))
	for _, rp := range resolved {
		addresses[rp.Peer] = rp.Address
	}
	return addresses, nil
}
