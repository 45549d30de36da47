package emit

import (
	"context"

	"proxypulse/internal/domain/node"
)

// NopWriter discards every artifact. Useful as a default when no downstream
// writer is configured, and in tests that only care about the Emitter's
// call sequence, not file output.
type NopWriter struct{}

func (NopWriter) WriteRankedConfig(ctx context.Context, nodes []node.Node, empty bool) error {
	return nil
}

func (NopWriter) WriteCompactConfig(ctx context.Context, nodes []node.Node, empty bool) error {
	return nil
}

func (NopWriter) WriteURIList(ctx context.Context, variant string, nodes []node.Node, empty bool) error {
	return nil
}

func (NopWriter) WriteStats(ctx context.Context, stats Stats) error {
	return nil
}
