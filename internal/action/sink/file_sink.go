package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes payloads as files under a local directory. Grounded on
// the teacher pack's local-filesystem collaborator shape (FileTarget).
type FileSink struct {
	dir string
}

// NewFileSink creates dir (and any missing parents) and returns a FileSink
// writing into it.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("file sink: create directory %q: %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

func (f *FileSink) Write(_ context.Context, name string, data []byte) error {
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("file sink: write %q: %w", path, err)
	}
	return nil
}

// Flush is a no-op: os.WriteFile is already durable per call.
func (f *FileSink) Flush(context.Context) error { return nil }
