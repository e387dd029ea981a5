package bootstrap

import (
	"os"
	"strconv"

	"github.com/fieldmux/fieldmux/internal/config"
	"github.com/fieldmux/fieldmux/internal/dispatch"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// BuildSelector constructs a dispatch.Selector for clientID out of clientCount
// producers, reading the distribution mode and usedServerCount override from
// the environment per spec.md §6 ("MULTIO_SERVER_DISTRIBUTION",
// "MULTIO_USED_SERVERS").
func BuildSelector(tree *config.Tree, serverPeers []message.Peer, clientID uint64, clientCount int) *dispatch.Selector {
	hashKeys := tree.HashKeys
	if len(hashKeys) == 0 {
		hashKeys = message.DefaultHashKeys
	}

	dist := dispatch.ParseDistribution(os.Getenv("MULTIO_SERVER_DISTRIBUTION"))
	usedServerCount := len(serverPeers)
	if v := os.Getenv("MULTIO_USED_SERVERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			usedServerCount = n
		}
	}

	return dispatch.NewSelector(serverPeers, clientID, clientCount, usedServerCount, hashKeys, dist)
}

// ServerPeers enumerates the server peers implied by tree.Servers, one per
// configured port, in the group named by tree.Group + "-servers".
func ServerPeers(tree *config.Tree) []message.Peer {
	var peers []message.Peer
	var id uint64
	group := tree.Group + "-servers"
	for _, sg := range tree.Servers {
		for range sg.Ports {
			peers = append(peers, message.NewPeer(group, id))
			id++
		}
	}
	return peers
}

// ClientPeers enumerates count client peers in the group named by
// tree.Group + "-clients".
func ClientPeers(tree *config.Tree, count int) []message.Peer {
	peers := make([]message.Peer, count)
	group := tree.Group + "-clients"
	for i := range peers {
		peers[i] = message.NewPeer(group, uint64(i))
	}
	return peers
}
