package emit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxypulse/internal/domain/node"
	"proxypulse/internal/domain/node/valueobjects"
	"proxypulse/internal/validate"
)

type recordingWriter struct {
	rankedEmpty, compactEmpty bool
	rankedCount, compactCount int
	uriVariants                []string
	stats                       Stats
}

func (r *recordingWriter) WriteRankedConfig(ctx context.Context, nodes []node.Node, empty bool) error {
	r.rankedEmpty = empty
	r.rankedCount = len(nodes)
	return nil
}

func (r *recordingWriter) WriteCompactConfig(ctx context.Context, nodes []node.Node, empty bool) error {
	r.compactEmpty = empty
	r.compactCount = len(nodes)
	return nil
}

func (r *recordingWriter) WriteURIList(ctx context.Context, variant string, nodes []node.Node, empty bool) error {
	r.uriVariants = append(r.uriVariants, variant)
	return nil
}

func (r *recordingWriter) WriteStats(ctx context.Context, stats Stats) error {
	r.stats = stats
	return nil
}

func testNode(t *testing.T, server string, port uint16, latencyMs int) node.Node {
	t.Helper()
	cfg, err := valueobjects.NewTrojanConfig("secret", "tcp", "", "", "", "", false)
	require.NoError(t, err)
	n, err := node.New(valueobjects.ProtocolTrojan, server, port, "", "sub")
	require.NoError(t, err)
	n = n.WithTrojan(cfg)
	n = n.MarkValidated(latencyMs, true, "")
	return n
}

func TestEmit_EmptyRankedSignalsPlaceholder(t *testing.T) {
	w := &recordingWriter{}
	e := New(w, 0)

	err := e.Emit(context.Background(), nil, validate.Report{}, time.Now())
	require.NoError(t, err)
	assert.True(t, w.rankedEmpty)
	assert.True(t, w.compactEmpty)
	assert.Equal(t, 0, w.rankedCount)
	assert.ElementsMatch(t, []string{"ranked", "compact"}, w.uriVariants)
	assert.Equal(t, 0.0, w.stats.SuccessRate)
}

func TestEmit_CompactCapTruncates(t *testing.T) {
	w := &recordingWriter{}
	e := New(w, 2)

	nodes := []node.Node{
		testNode(t, "a.example", 443, 10),
		testNode(t, "b.example", 443, 20),
		testNode(t, "c.example", 443, 30),
	}
	report := validate.Report{TotalNodes: 3, ValidNodes: 3}

	require.NoError(t, e.Emit(context.Background(), nodes, report, time.Now()))
	assert.Equal(t, 3, w.rankedCount)
	assert.Equal(t, 2, w.compactCount)
	assert.False(t, w.rankedEmpty)
	assert.InDelta(t, 1.0, w.stats.SuccessRate, 0.0001)
}

func TestJSONWriter_PlaceholderArtifactsAreValidEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONWriter(dir)
	require.NoError(t, err)
	e := New(w, 20)

	require.NoError(t, e.Emit(context.Background(), nil, validate.Report{}, time.Now()))

	for _, name := range []string{"ranked_nodes.json", "compact_nodes.json", "ranked_uris.txt", "compact_uris.txt", "validation_stats.json"} {
		_, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	rankedData, err := os.ReadFile(filepath.Join(dir, "ranked_nodes.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", trimWhitespace(string(rankedData)))

	uriData, err := os.ReadFile(filepath.Join(dir, "ranked_uris.txt"))
	require.NoError(t, err)
	assert.Empty(t, string(uriData))
}

func TestJSONWriter_WritesCanonicalURIs(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONWriter(dir)
	require.NoError(t, err)
	e := New(w, 20)

	nodes := []node.Node{testNode(t, "a.example", 443, 10)}
	require.NoError(t, e.Emit(context.Background(), nodes, validate.Report{TotalNodes: 1, ValidNodes: 1}, time.Now()))

	uriData, err := os.ReadFile(filepath.Join(dir, "ranked_uris.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(uriData), "trojan://")
}

func trimWhitespace(s string) string {
	out := make([]byte, 0, len(s))
	for _, c := range []byte(s) {
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
