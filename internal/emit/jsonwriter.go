package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"proxypulse/internal/domain/node"
)

// JSONWriter is the reference Writer implementation: it satisfies the
// placeholder contract (every artifact is always syntactically valid, even
// with zero nodes) by writing plain JSON/text files under a directory.
// Routing-rule and proxy-group formatting are a real downstream writer's
// job; this one exists so the core is demonstrably able to drive a Writer
// end to end.
type JSONWriter struct {
	dir string
}

// NewJSONWriter creates a JSONWriter rooted at dir, creating it if missing.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("emit: create output dir: %w", err)
	}
	return &JSONWriter{dir: dir}, nil
}

// configEntry is one node's JSON representation in the ranked/compact
// configuration artifacts.
type configEntry struct {
	Protocol         string `json:"protocol"`
	Server           string `json:"server"`
	Port             uint16 `json:"port"`
	Name             string `json:"name"`
	Provenance       string `json:"provenance"`
	MeasuredLatencyMs *int  `json:"measured_latency_ms,omitempty"`
	URI              string `json:"uri,omitempty"`
}

func toEntry(n node.Node) configEntry {
	entry := configEntry{
		Protocol:   string(n.Protocol()),
		Server:     n.Server(),
		Port:       n.Port(),
		Name:       n.Name(),
		Provenance: n.Provenance(),
	}
	if lat, ok := n.MeasuredLatencyMs(); ok {
		entry.MeasuredLatencyMs = &lat
	}
	if uri, err := n.CanonicalURI(); err == nil {
		entry.URI = uri
	}
	return entry
}

func (w *JSONWriter) WriteRankedConfig(ctx context.Context, nodes []node.Node, empty bool) error {
	return w.writeConfig("ranked_nodes.json", nodes)
}

func (w *JSONWriter) WriteCompactConfig(ctx context.Context, nodes []node.Node, empty bool) error {
	return w.writeConfig("compact_nodes.json", nodes)
}

func (w *JSONWriter) writeConfig(name string, nodes []node.Node) error {
	entries := make([]configEntry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, toEntry(n))
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("emit: marshal %s: %w", name, err)
	}
	return os.WriteFile(filepath.Join(w.dir, name), data, 0o644)
}

func (w *JSONWriter) WriteURIList(ctx context.Context, variant string, nodes []node.Node, empty bool) error {
	var b strings.Builder
	for _, n := range nodes {
		uri, err := n.CanonicalURI()
		if err != nil {
			continue
		}
		b.WriteString(uri)
		b.WriteByte('\n')
	}
	name := fmt.Sprintf("%s_uris.txt", variant)
	return os.WriteFile(filepath.Join(w.dir, name), []byte(b.String()), 0o644)
}

func (w *JSONWriter) WriteStats(ctx context.Context, stats Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("emit: marshal validation stats: %w", err)
	}
	return os.WriteFile(filepath.Join(w.dir, "validation_stats.json"), data, 0o644)
}
