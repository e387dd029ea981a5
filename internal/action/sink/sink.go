// Package sink implements spec.md §4.8's Sink action: writes message
// payloads to an external sink selected by configuration, and issues a
// flush on StepComplete.
package sink

import (
	"context"
	"fmt"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// Sink is the external-collaborator boundary spec.md §4.8 names: "writes
// the message payload to an external sink selected by configuration".
type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
	Flush(ctx context.Context) error
}

// Error is the SinkError kind from spec.md §7: "the sink reports
// propagation upward; policy is per-plan (on-error: continue|abort,
// default abort)". The action itself only wraps and returns it — the
// continue/abort decision belongs to the Dispatcher/Plan (spec.md §4.9,
// SPEC_FULL.md §11's per-plan on-error policy).
type Error struct {
	Name   string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sink: %s: %s: %v", e.Name, e.Reason, e.Cause)
	}
	return fmt.Sprintf("sink: %s: %s", e.Name, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Action implements spec.md §4.8's Sink.
type Action struct {
	*action.Base
	sink     Sink
	nameFunc func(message.Message) string
}

// DefaultName derives a sink object name from the Field-identifying
// metadata keys, falling back to "field" if none resolve.
func DefaultName(msg message.Message) string {
	name, err := msg.FieldIdentifier(message.DefaultHashKeys)
	if err != nil || name == "" {
		return "field"
	}
	return name
}

// New builds a Sink action writing every non-control payload to sink and
// flushing on StepComplete. nameFunc is optional; DefaultName is used when
// nil.
func New(next action.Action, sink Sink, nameFunc func(message.Message) string, reporter stats.Reporter, log logging.Logger) *Action {
	if nameFunc == nil {
		nameFunc = DefaultName
	}
	a := &Action{sink: sink, nameFunc: nameFunc}
	a.Base = action.NewBase("sink", next, reporter, log, a.run)
	return a
}

func (a *Action) run(ctx context.Context, msg message.Message, next action.Action) error {
	switch msg.Tag {
	case message.TagStepComplete:
		if err := a.sink.Flush(ctx); err != nil {
			return &Error{Name: "*", Reason: "flush failed", Cause: err}
		}
		return action.ExecuteNext(ctx, next, msg)
	case message.TagField, message.TagGrib, message.TagStatisticsUpdate:
		name := a.nameFunc(msg)
		if err := a.sink.Write(ctx, name, msg.Payload); err != nil {
			return &Error{Name: name, Reason: "write failed", Cause: err}
		}
		return action.ExecuteNext(ctx, next, msg)
	default:
		return action.ExecuteNext(ctx, next, msg)
	}
}
