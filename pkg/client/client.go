// Package client is the public facade spec.md §6 names as the Client API
// (new_context/new_handle/write_field/write_grib/flush/notify/...),
// rendered idiomatically: opaque handles and status-code returns become a
// single *Client with ordinary Go methods and error returns, serialized by
// one mutex per spec.md §5 ("the MultIO facade serializes all public entry
// points... with a single mutex; concurrent producer threads may call in
// but their effects are linearized").
package client

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/fieldmux/fieldmux/internal/action/clienttransport"
	"github.com/fieldmux/fieldmux/internal/dispatch"
	"github.com/fieldmux/fieldmux/internal/domain"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/internal/transport"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// Version is returned by (*Client).Version, spec.md §6's version(&out).
const Version = "0.1.0"

// Metadata is spec.md §6's new_metadata()/metadata_set_* surface: a plain
// value type built with message.NewMetadata and Set, re-exported here so
// callers of this package don't need to import pkg/message directly for
// the common case.
type Metadata = message.Metadata

// NewMetadata returns an empty Metadata, spec.md §6's new_metadata().
func NewMetadata() Metadata { return message.NewMetadata() }

// Client is a single producer-side handle: one Transport, one hash-based
// Selector, and the mutex that linearizes every public entry point per
// spec.md §5.
type Client struct {
	mu     sync.Mutex
	action *clienttransport.Action
	self   message.Peer
	path   string
	closed bool
}

// New builds a Client writing through tr, selecting destination servers
// with selector. buffered toggles spec.md §4.2's coalescing send mode.
func New(tr transport.Transport, selector *dispatch.Selector, buffered bool, reporter stats.Reporter, log logging.Logger) *Client {
	return &Client{
		action: clienttransport.New(tr, selector, buffered, reporter, log),
		self:   tr.LocalPeer(),
	}
}

// SetPath records a local working directory for this handle, spec.md §6's
// set_path(context, dir). It has no effect on already-sent messages.
func (c *Client) SetPath(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = dir
}

// Path returns the directory set by SetPath, or "" if unset.
func (c *Client) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// WriteField sends a Field message carrying data (one double per global
// grid point in this client's local subdomain), spec.md §6's
// write_field(handle, md, double* data, count).
func (c *Client) WriteField(ctx context.Context, md Metadata, data []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ErrClosed{}
	}
	msg := message.NewMessage(message.TagField, c.self, message.Peer{}, md, encodeDoubles(data))
	return c.action.Execute(ctx, msg)
}

// WriteGrib sends a pre-encoded GRIB message, spec.md §6's
// write_grib(handle, md, bytes, len).
func (c *Client) WriteGrib(ctx context.Context, md Metadata, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ErrClosed{}
	}
	msg := message.NewMessage(message.TagGrib, c.self, message.Peer{}, md, append([]byte(nil), data...))
	return c.action.Execute(ctx, msg)
}

// Flush sends a StepComplete message and forces any buffered sends out,
// spec.md §6's flush(handle, md).
func (c *Client) Flush(ctx context.Context, md Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ErrClosed{}
	}
	msg := message.NewMessage(message.TagStepComplete, c.self, message.Peer{}, md, nil)
	if err := c.action.Execute(ctx, msg); err != nil {
		return err
	}
	return c.action.Flush(ctx)
}

// Notify sends a control message carrying the named event in its metadata
// under the "event" key, spec.md §6's notify(handle, md, event-name). Uses
// TagOpen rather than TagDomain: a Domain message has a specific meaning
// (installing a DomainMap descriptor, see WriteDomain) that a generic
// event notification must not collide with.
func (c *Client) Notify(ctx context.Context, md Metadata, event string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ErrClosed{}
	}
	md.Set("event", message.StringValue(event))
	msg := message.NewMessage(message.TagOpen, c.self, message.Peer{}, md, nil)
	return c.action.Execute(ctx, msg)
}

// WriteDomain sends this client's contribution to a named domain
// decomposition as a Domain message, spec.md §3's "DomainMap entries are
// installed on receipt of Domain/Mask messages at server startup". md must
// carry the "domain" metadata key. Broadcasts to every server rather than
// hash-selecting one: a domain's descriptors must be installed everywhere
// before any Field referencing that domain can land on an arbitrary server
// (spec.md §4.5's hash routes by category/name/level, which is independent
// of domain membership, so no single server can be assumed).
func (c *Client) WriteDomain(ctx context.Context, md Metadata, desc *domain.Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ErrClosed{}
	}
	tag := message.TagDomain
	if desc.Mask != nil {
		tag = message.TagMask
	}
	md.Set("toAllServers", message.BoolValue(true))
	msg := message.NewMessage(tag, c.self, message.Peer{}, md, domain.EncodeDescriptor(desc))
	return c.action.Execute(ctx, msg)
}

// Close broadcasts a Close message to every server (every server must see
// this client's Close, spec.md §4.9's "a server that receives Close from
// every client finishes") and marks this handle unusable. Further calls
// return ErrClosed instead of panicking, the idiomatic stand-in for the
// original's delete_* handle-invalidation contract.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	md := message.NewMetadata()
	md.Set("toAllServers", message.BoolValue(true))
	msg := message.NewMessage(message.TagClose, c.self, message.Peer{}, md, nil)
	err := c.action.Execute(ctx, msg)
	c.closed = true
	return err
}

// ErrClosed is returned by any Client method called after Close.
type ErrClosed struct{}

func (*ErrClosed) Error() string { return "client: handle closed" }

func encodeDoubles(values []float64) []byte {
	out := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}
