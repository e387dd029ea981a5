package bootstrap

import (
	"context"
	"fmt"

	"github.com/fieldmux/fieldmux/internal/action/sink"
	"github.com/fieldmux/fieldmux/internal/config"
)

// BuildSinks constructs every tree.Sinks entry into a live sink.Sink, keyed
// by its configured name, per spec.md §6's "sink.sinks: [SinkConfig]". The
// result is the map a "sink" action's "name" looks up in ServerDeps.Sinks.
func BuildSinks(ctx context.Context, tree *config.Tree) (map[string]sink.Sink, error) {
	sinks := make(map[string]sink.Sink, len(tree.Sinks))
	for _, sc := range tree.Sinks {
		built, err := buildSink(ctx, sc)
		if err != nil {
			return nil, &config.Error{Path: "sinks[" + sc.Name + "]", Reason: err.Error()}
		}
		sinks[sc.Name] = built
	}
	return sinks, nil
}

func buildSink(ctx context.Context, sc config.SinkConfig) (sink.Sink, error) {
	switch sc.Type {
	case "file":
		return sink.NewFileSink(sc.Dir)
	case "s3":
		return sink.NewS3Sink(ctx, sink.S3SinkConfig{
			Endpoint:     sc.Endpoint,
			Bucket:       sc.Bucket,
			Prefix:       sc.Prefix,
			AccessKey:    sc.AccessKey,
			SecretKey:    sc.SecretKey,
			Region:       sc.Region,
			UsePathStyle: sc.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported sink type %q", sc.Type)
	}
}
