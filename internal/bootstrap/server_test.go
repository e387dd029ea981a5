package bootstrap

import (
	"context"
	"testing"

	"github.com/fieldmux/fieldmux/internal/action/sink"
	"github.com/fieldmux/fieldmux/internal/config"
	"github.com/fieldmux/fieldmux/internal/domain"
	"github.com/fieldmux/fieldmux/pkg/message"
)

type memSink struct {
	written    map[string][]byte
	flushCount int
}

func newMemSink() *memSink { return &memSink{written: make(map[string][]byte)} }

func (m *memSink) Write(_ context.Context, name string, data []byte) error {
	m.written[name] = append([]byte(nil), data...)
	return nil
}
func (m *memSink) Flush(context.Context) error {
	m.flushCount++
	return nil
}

func fieldMessage(category string) message.Message {
	md := message.NewMetadata()
	md.Set("category", message.StringValue(category))
	md.Set("name", message.StringValue("sst"))
	md.Set("level", message.StringValue("1"))
	return message.NewMessage(message.TagField, message.NewPeer("clients", 0), message.Peer{}, md, []byte{1, 2, 3, 4, 5, 6, 7, 8})
}

func TestBuildDispatcher_WiresSelectThenSinkChain(t *testing.T) {
	ms := newMemSink()
	tree := &config.Tree{
		Transport: "tcp",
		Group:     "g",
		Count:     1,
		HashKeys:  []string{"category", "name", "level"},
		Plans: []config.PlanConfig{
			{
				Name: "ocean-only",
				Actions: []config.ActionConfig{
					{Type: "select", Raw: map[string]any{"match": map[string]any{"category": "ocean"}}},
					{Type: "sink", Raw: map[string]any{"name": "primary"}},
				},
			},
		},
	}

	d, err := BuildDispatcher(tree, ServerDeps{
		Registry: domain.NewRegistry(1),
		Sinks:    map[string]sink.Sink{"primary": ms},
	})
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}

	if err := d.Feed(context.Background(), fieldMessage("ocean")); err != nil {
		t.Fatalf("feed ocean: %v", err)
	}
	if err := d.Feed(context.Background(), fieldMessage("atmosphere")); err != nil {
		t.Fatalf("feed atmosphere: %v", err)
	}

	if len(ms.written) != 1 {
		t.Fatalf("expected exactly one sink write (ocean only), got %d", len(ms.written))
	}
}

func TestBuildDispatcher_RejectsUnknownActionType(t *testing.T) {
	tree := &config.Tree{
		Transport: "tcp",
		Group:     "g",
		Count:     1,
		Plans: []config.PlanConfig{
			{Name: "bad", Actions: []config.ActionConfig{{Type: "not-a-real-action"}}},
		},
	}

	if _, err := BuildDispatcher(tree, ServerDeps{Registry: domain.NewRegistry(1)}); err == nil {
		t.Fatalf("expected an error for an unrecognized action type")
	}
}
