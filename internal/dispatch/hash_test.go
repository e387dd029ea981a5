package dispatch

import (
	"strconv"
	"testing"

	"github.com/fieldmux/fieldmux/pkg/message"
)

func serverPeers(n int) []message.Peer {
	peers := make([]message.Peer, n)
	for i := 0; i < n; i++ {
		peers[i] = message.NewPeer("servers", uint64(i))
	}
	return peers
}

func sstMetadata() message.Metadata {
	md := message.NewMetadata()
	md.Set("category", message.StringValue("ocean"))
	md.Set("name", message.StringValue("sst"))
	md.Set("level", message.StringValue("1"))
	return md
}

// Scenario 2 (spec.md §8): hash dispatch stability under hashed_to_single.
func TestSelector_HashedToSingleIsStable(t *testing.T) {
	sel := NewSelector(serverPeers(4), 0, 1, 0, nil, HashedToSingle)
	md := sstMetadata()

	first, err := sel.Choose(md)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	for i := 0; i < 1000; i++ {
		again, err := sel.Choose(md)
		if err != nil {
			t.Fatalf("choose: %v", err)
		}
		if !again.Equal(first) {
			t.Fatalf("iteration %d: chose %v, expected %v", i, again, first)
		}
	}
}

// Scenario 3 (spec.md §8): cyclic windowing restricts each client to a
// window of usedServerCount servers starting at its serverId.
func TestSelector_HashedCyclicWindow(t *testing.T) {
	const serverCount = 4
	const usedServerCount = 2

	check := func(clientID uint64, wantWindow map[uint64]bool) {
		sel := NewSelector(serverPeers(serverCount), clientID, 8, usedServerCount, nil, HashedCyclic)
		for i := 0; i < 500; i++ {
			md := message.NewMetadata()
			md.Set("category", message.StringValue("ocean"))
			md.Set("name", message.StringValue("field"))
			md.Set("level", message.StringValue(randLevel(i)))

			peer, err := sel.Choose(md)
			if err != nil {
				t.Fatalf("choose: %v", err)
			}
			if !wantWindow[peer.ID] {
				t.Fatalf("client %d chose server %d, outside window %v", clientID, peer.ID, wantWindow)
			}
		}
	}

	// clientCount=8, serverCount=4 => denom = ceil(8/4) = 2.
	// client 0: serverId = 0/2 = 0 -> window {0,1}
	check(0, map[uint64]bool{0: true, 1: true})
	// client 2: serverId = 2/2 = 1 -> window {1,2}
	check(2, map[uint64]bool{1: true, 2: true})
}

func randLevel(i int) string {
	// deterministic pseudo-variety without math/rand, to exercise many
	// distinct metadata tuples the way scenario 3 calls for.
	return string(rune('a' + (i*37)%26))
}

// Scenario 4 (spec.md §8): even balancing keeps counters within 1 of each
// other across 100 distinct field-ids over 4 servers.
func TestSelector_EvenBalancing(t *testing.T) {
	sel := NewSelector(serverPeers(4), 0, 1, 0, nil, Even)

	counts := make(map[uint64]int)
	for i := 0; i < 100; i++ {
		md := message.NewMetadata()
		md.Set("category", message.StringValue("ocean"))
		md.Set("name", message.StringValue("field"))
		md.Set("level", message.StringValue(strconv.Itoa(i)))

		peer, err := sel.Choose(md)
		if err != nil {
			t.Fatalf("choose: %v", err)
		}
		counts[peer.ID]++
	}

	min, max := -1, -1
	for _, c := range counts {
		if min == -1 || c < min {
			min = c
		}
		if max == -1 || c > max {
			max = c
		}
	}
	if max-min > 1 {
		t.Fatalf("counters not balanced: %v", counts)
	}
}

func TestSelector_EvenCachesPerField(t *testing.T) {
	sel := NewSelector(serverPeers(4), 0, 1, 0, nil, Even)
	md := sstMetadata()

	first, err := sel.Choose(md)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	second, err := sel.Choose(md)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("even distribution must cache the chosen server per field: %v vs %v", first, second)
	}
}
