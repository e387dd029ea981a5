package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fieldmux/fieldmux/internal/config"
)

func TestBuildSinks_ConstructsFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	tree := &config.Tree{
		Sinks: []config.SinkConfig{{Name: "primary", Type: "file", Dir: dir}},
	}

	sinks, err := BuildSinks(context.Background(), tree)
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	s, ok := sinks["primary"]
	if !ok {
		t.Fatalf("expected a sink registered under \"primary\", got %v", sinks)
	}
	if err := s.Write(context.Background(), "obj", []byte("hello")); err != nil {
		t.Fatalf("write through built file sink: %v", err)
	}
}

func TestBuildSinks_RejectsUnsupportedType(t *testing.T) {
	tree := &config.Tree{Sinks: []config.SinkConfig{{Name: "bad", Type: "ftp"}}}
	if _, err := BuildSinks(context.Background(), tree); err == nil {
		t.Fatalf("expected an error for an unsupported sink type")
	}
}

func TestBuildSinks_EmptyWhenUnconfigured(t *testing.T) {
	sinks, err := BuildSinks(context.Background(), &config.Tree{})
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	if len(sinks) != 0 {
		t.Fatalf("expected no sinks, got %v", sinks)
	}
}
