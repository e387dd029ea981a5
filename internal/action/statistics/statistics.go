// Package statistics implements spec.md §4.8's Statistics action: temporal
// aggregates (mean, min, max, accumulation) computed across successive time
// steps of the same field-id, emitted once a configured window of steps
// closes.
package statistics

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/pkg/message"
)

const sizeofDouble = 8

// Operation names a temporal aggregate spec.md §4.8 lists by name.
type Operation string

const (
	OpMean       Operation = "mean"
	OpMin        Operation = "min"
	OpMax        Operation = "max"
	OpAccumulate Operation = "accumulate"
)

type window struct {
	header message.Header
	sum    []float64
	min    []float64
	max    []float64
	steps  int64
}

// Action implements spec.md §4.8's Statistics.
type Action struct {
	*action.Base
	mu         sync.Mutex
	hashKeys   []string
	operations []Operation
	windowSize int64
	windows    map[string]*window
}

// New builds a Statistics action accumulating operations over windowSize
// successive steps of each field-id (derived using hashKeys, defaulting to
// message.DefaultHashKeys).
func New(next action.Action, hashKeys []string, operations []Operation, windowSize int64, reporter stats.Reporter, log logging.Logger) *Action {
	if windowSize <= 0 {
		windowSize = 1
	}
	a := &Action{
		hashKeys:   hashKeys,
		operations: operations,
		windowSize: windowSize,
		windows:    make(map[string]*window),
	}
	a.Base = action.NewBase("statistics", next, reporter, log, a.run)
	return a
}

func (a *Action) run(ctx context.Context, msg message.Message, next action.Action) error {
	if msg.Tag != message.TagField {
		return action.ExecuteNext(ctx, next, msg)
	}

	fieldID, err := msg.FieldIdentifier(a.hashKeys)
	if err != nil {
		return err
	}

	values := decodeDoubles(msg.Payload)

	a.mu.Lock()
	w, ok := a.windows[fieldID]
	if !ok {
		w = &window{
			header: msg.Header,
			sum:    append([]float64(nil), values...),
			min:    append([]float64(nil), values...),
			max:    append([]float64(nil), values...),
			steps:  1,
		}
		a.windows[fieldID] = w
	} else {
		if len(w.sum) != len(values) {
			a.mu.Unlock()
			return fmt.Errorf("statistics: field %q changed size across steps (%d != %d)", fieldID, len(values), len(w.sum))
		}
		for i, v := range values {
			w.sum[i] += v
			if v < w.min[i] {
				w.min[i] = v
			}
			if v > w.max[i] {
				w.max[i] = v
			}
		}
		w.steps++
	}

	closed := w.steps >= a.windowSize
	var toEmit []message.Message
	if closed {
		toEmit = a.buildResults(w)
		delete(a.windows, fieldID)
	}
	a.mu.Unlock()

	for _, out := range toEmit {
		if err := action.ExecuteNext(ctx, next, out); err != nil {
			return err
		}
	}
	return nil
}

func (a *Action) buildResults(w *window) []message.Message {
	out := make([]message.Message, 0, len(a.operations))
	for _, op := range a.operations {
		md := w.header.Metadata.Clone()
		md.Set("statistic", message.StringValue(string(op)))
		result := message.Message{
			Header: message.Header{
				Tag:         message.TagStatisticsUpdate,
				Source:      w.header.Source,
				Destination: w.header.Destination,
				Metadata:    md,
			},
			Payload: encodeOperation(op, w),
		}
		out = append(out, result)
	}
	return out
}

func encodeOperation(op Operation, w *window) []byte {
	switch op {
	case OpMean:
		values := make([]float64, len(w.sum))
		for i, s := range w.sum {
			values[i] = s / float64(w.steps)
		}
		return encodeDoubles(values)
	case OpMin:
		return encodeDoubles(w.min)
	case OpMax:
		return encodeDoubles(w.max)
	case OpAccumulate:
		return encodeDoubles(w.sum)
	default:
		return encodeDoubles(w.sum)
	}
}

func decodeDoubles(b []byte) []float64 {
	out := make([]float64, len(b)/sizeofDouble)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*sizeofDouble:]))
	}
	return out
}

func encodeDoubles(values []float64) []byte {
	out := make([]byte, len(values)*sizeofDouble)
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*sizeofDouble:], math.Float64bits(v))
	}
	return out
}
