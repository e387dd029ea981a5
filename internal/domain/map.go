// Package domain implements the DomainMap registry (spec.md §3, §9 design
// notes): a process-wide, initialize-once-read-many mapping from a named
// spatial decomposition to each contributing client's local-to-global index
// translation table, installed from Domain/Mask control messages at server
// startup.
package domain

import (
	"sync"

	"github.com/fieldmux/fieldmux/pkg/message"
)

// Descriptor carries one client's local-size, the domain's global-size,
// and the scatter indices needed to expand a local slice into its global
// positions.
type Descriptor struct {
	GlobalSize int
	// GlobalIndices[i] is the global position local value i scatters to.
	// len(GlobalIndices) is this descriptor's local size.
	GlobalIndices []int
	// Mask, if non-nil, has length GlobalSize; a false entry excludes that
	// global point from being written (the Mask control message,
	// SPEC_FULL.md §11).
	Mask []bool
}

// LocalSize is the number of local points this descriptor scatters.
func (d *Descriptor) LocalSize() int { return len(d.GlobalIndices) }

// Expand scatters local values into their global positions in global,
// skipping any point excluded by Mask. global must already be sized to
// GlobalSize (possibly times a level count, in which case callers slice per
// level and call Expand once per level).
func (d *Descriptor) Expand(local, global []float64) error {
	if len(local) != d.LocalSize() {
		return &Error{Reason: "local buffer size does not match descriptor local size"}
	}
	for i, g := range d.GlobalIndices {
		if g < 0 || g >= len(global) {
			return &Error{Reason: "global index out of range"}
		}
		if d.Mask != nil && !d.Mask[g] {
			continue
		}
		global[g] = local[i]
	}
	return nil
}

// Map is the per-domain mapping from source Peer to Descriptor. It becomes
// "complete" once every client peer in the participating group has
// contributed (spec.md §3).
type Map struct {
	mu          sync.RWMutex
	name        string
	expected    int
	descriptors map[message.Peer]*Descriptor
}

// NewMap creates an empty Map for the named domain, expecting
// expectedClients distinct source peers before it's complete.
func NewMap(name string, expectedClients int) *Map {
	return &Map{
		name:        name,
		expected:    expectedClients,
		descriptors: make(map[message.Peer]*Descriptor),
	}
}

// Install records peer's descriptor. It is a protocol/config error for two
// peers in the same domain to disagree on GlobalSize (spec.md invariant:
// DomainMap.globalSize() is identical across all descriptors in the map).
func (m *Map) Install(peer message.Peer, d *Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.descriptors {
		if existing.GlobalSize != d.GlobalSize {
			return &Error{Domain: m.name, Reason: "globalSize disagreement between parts"}
		}
		break
	}
	m.descriptors[peer] = d
	return nil
}

// Get returns the descriptor installed for peer, if any.
func (m *Map) Get(peer message.Peer) (*Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.descriptors[peer]
	return d, ok
}

// GlobalSize returns the domain's global size, valid once at least one
// descriptor has been installed.
func (m *Map) GlobalSize() (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.descriptors {
		return d.GlobalSize, true
	}
	return 0, false
}

// Size is the number of client peers currently installed.
func (m *Map) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.descriptors)
}

// IsComplete reports whether every expected client peer has installed a
// descriptor.
func (m *Map) IsComplete() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expected > 0 && len(m.descriptors) == m.expected
}

// Name returns the domain's name.
func (m *Map) Name() string { return m.name }
