// Package message defines the wire-level data model shared by every
// transport backend: peers, framed messages and their metadata.
package message

import "fmt"

// Peer identifies a single participant in the transport, either a client or
// a server process. Equality is structural: two Peers with the same group
// and id are the same participant regardless of which backend produced them.
type Peer struct {
	Group string
	ID    uint64
}

// NewPeer builds a Peer for the given group and numeric id.
func NewPeer(group string, id uint64) Peer {
	return Peer{Group: group, ID: id}
}

// String renders the peer as "group/id", used in logs and error messages.
func (p Peer) String() string {
	return fmt.Sprintf("%s/%d", p.Group, p.ID)
}

// Equal reports whether p and other name the same participant.
func (p Peer) Equal(other Peer) bool {
	return p.Group == other.Group && p.ID == other.ID
}

// IsZero reports whether p is the zero Peer (used as a "not yet assigned"
// sentinel for e.g. aggregation accumulators before a real source exists).
func (p Peer) IsZero() bool {
	return p.Group == "" && p.ID == 0
}
