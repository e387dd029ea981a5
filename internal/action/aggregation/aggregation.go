// Package aggregation implements spec.md §4.7: the server-side reassembly
// of a global field from its per-client parts, grounded directly on
// original_source/src/multio/action/Aggregation.cc's handleField/
// handleFlush/allPartsArrived logic.
package aggregation

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/internal/domain"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/pkg/message"
)

const sizeofDouble = 8

// accumulator holds one field-id's in-progress reassembly: the growing
// global message plus the set of source peers that have already
// contributed, so a duplicate part can be detected (spec.md §4.7: "double
// contributions from the same peer for the same field-id are a protocol
// error").
type accumulator struct {
	msg        message.Message
	levelCount int64
	parts      map[message.Peer]struct{}
}

// Action implements spec.md §4.7's Aggregation action.
type Action struct {
	*action.Base

	mu       sync.Mutex
	registry *domain.Registry
	hashKeys []string
	// clientCount is the number of distinct client peers each field and
	// each step must be heard from before completion (DomainMap.size()
	// and flushes[fieldId] == clientCount respectively).
	clientCount int

	msgMap  map[string]*accumulator
	flushes map[string]int
}

// New builds an Aggregation action. next receives fully reassembled Field
// messages and de-duplicated StepComplete messages.
func New(next action.Action, registry *domain.Registry, hashKeys []string, clientCount int, reporter stats.Reporter, log logging.Logger) *Action {
	a := &Action{
		registry:    registry,
		hashKeys:    hashKeys,
		clientCount: clientCount,
		msgMap:      make(map[string]*accumulator),
		flushes:     make(map[string]int),
	}
	a.Base = action.NewBase("aggregation", next, reporter, log, a.run)
	return a
}

func (a *Action) run(ctx context.Context, msg message.Message, next action.Action) error {
	switch msg.Tag {
	case message.TagField:
		return a.handleField(ctx, msg, next)
	case message.TagStepComplete:
		return a.handleStepComplete(ctx, msg, next)
	case message.TagDomain, message.TagMask:
		return a.handleDomainInstall(ctx, msg, next)
	default:
		return action.ExecuteNext(ctx, next, msg)
	}
}

// handleDomainInstall implements spec.md §3's DomainMap lifecycle: "entries
// are installed on receipt of Domain/Mask messages at server startup." A
// Mask message (SPEC_FULL.md §11) carries the same descriptor shape with
// its Mask field populated, so both tags share this handler.
func (a *Action) handleDomainInstall(ctx context.Context, msg message.Message, next action.Action) error {
	name := msg.Domain()
	if name == "" {
		return &domain.Error{Reason: "domain message carries no \"domain\" metadata key"}
	}

	desc, err := domain.DecodeDescriptor(msg.Payload)
	if err != nil {
		return &domain.Error{Domain: name, Reason: err.Error()}
	}

	if err := a.registry.GetOrCreate(name).Install(msg.Source, desc); err != nil {
		return err
	}

	return action.ExecuteNext(ctx, next, msg)
}

// handleField implements Aggregation.cc's handleField: allocate the
// accumulator on first sight of a field-id, scatter the part into it via
// the DomainMap, and forward once every expected part has arrived.
func (a *Action) handleField(ctx context.Context, msg message.Message, next action.Action) error {
	fieldID, err := msg.FieldIdentifier(a.hashKeys)
	if err != nil {
		return err
	}

	dm := a.registry.GetOrCreate(msg.Domain())
	descriptor, ok := dm.Get(msg.Source)
	if !ok {
		return &domain.Error{Domain: msg.Domain(), FieldID: fieldID, Reason: "no domain descriptor installed for source peer"}
	}

	levelCount, err := msg.Metadata.GetInt("levelCount")
	if err != nil {
		levelCount = 1
	}

	a.mu.Lock()
	acc, exists := a.msgMap[fieldID]
	if !exists {
		globalSize, ok := dm.GlobalSize()
		if !ok {
			a.mu.Unlock()
			return &domain.Error{Domain: msg.Domain(), FieldID: fieldID, Reason: "domain map has no installed descriptors yet"}
		}
		acc = &accumulator{
			msg: message.NewMessage(message.TagField, message.NewPeer(msg.Source.Group, 0), message.Peer{}, msg.Metadata.Clone(),
				make([]byte, globalSize*int(levelCount)*sizeofDouble)),
			levelCount: levelCount,
			parts:      make(map[message.Peer]struct{}),
		}
		a.msgMap[fieldID] = acc
	}

	if acc.levelCount != levelCount {
		a.mu.Unlock()
		delete(a.msgMap, fieldID)
		return &domain.Error{Domain: msg.Domain(), FieldID: fieldID, Reason: "levelCount mismatch between parts"}
	}

	if _, dup := acc.parts[msg.Source]; dup {
		a.mu.Unlock()
		return &domain.Error{Domain: msg.Domain(), FieldID: fieldID, Reason: "duplicate part from source peer " + msg.Source.String()}
	}

	local := decodeDoubles(msg.Payload)
	global := decodeDoubles(acc.msg.Payload)
	localSize, levels := descriptor.LocalSize(), int(levelCount)
	if levels < 1 || len(local) != localSize*levels {
		a.mu.Unlock()
		return &domain.Error{Domain: msg.Domain(), FieldID: fieldID, Reason: "local buffer size does not match descriptor local size times levelCount"}
	}
	globalSize := len(global) / levels
	for lvl := 0; lvl < levels; lvl++ {
		if err := descriptor.Expand(local[lvl*localSize:(lvl+1)*localSize], global[lvl*globalSize:(lvl+1)*globalSize]); err != nil {
			delete(a.msgMap, fieldID)
			a.mu.Unlock()
			return &domain.Error{Domain: msg.Domain(), FieldID: fieldID, Reason: err.Error()}
		}
	}
	encodeDoublesInto(acc.msg.Payload, global)
	acc.parts[msg.Source] = struct{}{}

	complete := dm.IsComplete() && len(acc.parts) == dm.Size()
	var forward message.Message
	if complete {
		forward = acc.msg
		delete(a.msgMap, fieldID)
	}
	a.mu.Unlock()

	if complete {
		return action.ExecuteNext(ctx, next, forward)
	}
	return nil
}

// handleStepComplete implements Aggregation.cc's flush counting: forward
// exactly one StepComplete downstream once every participating client has
// reported it for this field-id.
func (a *Action) handleStepComplete(ctx context.Context, msg message.Message, next action.Action) error {
	fieldID, err := msg.FieldIdentifier(a.hashKeys)
	if err != nil {
		fieldID = msg.Domain()
	}

	dm := a.registry.GetOrCreate(msg.Domain())

	a.mu.Lock()
	a.flushes[fieldID]++
	count := a.flushes[fieldID]
	complete := dm.IsComplete() && count == a.clientCount
	if complete {
		delete(a.flushes, fieldID)
	}
	a.mu.Unlock()

	if complete {
		return action.ExecuteNext(ctx, next, msg)
	}
	return nil
}

func decodeDoubles(b []byte) []float64 {
	out := make([]float64, len(b)/sizeofDouble)
	for i := range out {
		bits := binary.LittleEndian.Uint64(b[i*sizeofDouble:])
		out[i] = math.Float64frombits(bits)
	}
	return out
}

// encodeDoublesInto writes values back into dst's bytes, the commit step
// after Expand has scattered a part into the decoded global slice.
func encodeDoublesInto(dst []byte, values []float64) {
	for i, v := range values {
		binary.LittleEndian.PutUint64(dst[i*sizeofDouble:], math.Float64bits(v))
	}
}
