// Package emit implements the Emitter: it hands the Validator's ranked Node
// list and ValidationReport to an external Writer, producing the output
// artifacts described by the external interfaces. The Emitter never
// formats or serializes node parameters itself — that is the Writer's job,
// using the Codec's reverse (ToURI) operations.
package emit

import (
	"context"
	"time"

	"proxypulse/internal/domain/node"
	"proxypulse/internal/validate"
)

// Writer is the external configuration writer collaborator. The core
// provides the interface plus NopWriter and JSONWriter; routing-rule and
// proxy-group formatting are out of scope and live in a real downstream
// writer the core never sees.
type Writer interface {
	// WriteRankedConfig writes the primary ranked-node configuration.
	// empty is true when nodes is empty, so the writer can still produce
	// a syntactically valid placeholder artifact per the placeholder
	// contract.
	WriteRankedConfig(ctx context.Context, nodes []node.Node, empty bool) error
	// WriteCompactConfig writes the smaller-cap variant of the same
	// artifact.
	WriteCompactConfig(ctx context.Context, nodes []node.Node, empty bool) error
	// WriteURIList writes a flat list of one canonical node URI per line.
	// variant names which configuration this list corresponds to
	// ("ranked" or "compact"), since the contract calls for "two variants
	// matching the two configuration files".
	WriteURIList(ctx context.Context, variant string, nodes []node.Node, empty bool) error
	// WriteStats writes the validation_stats record.
	WriteStats(ctx context.Context, stats Stats) error
}

// Stats mirrors the validation_stats artifact's shape.
type Stats struct {
	Timestamp       time.Time                  `json:"timestamp"`
	TotalNodes      int                        `json:"total_nodes"`
	ValidNodes      int                        `json:"valid_nodes"`
	SuccessRate     float64                    `json:"success_rate"`
	PerSubscription map[string]SubscriptionStat `json:"per_subscription"`
}

// SubscriptionStat is one subscription's contribution to Stats.
type SubscriptionStat struct {
	Total        int     `json:"total"`
	Valid        int     `json:"valid"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// CompactCap is the default node cap for the compact configuration variant.
const CompactCap = 20

// Emitter drives a Writer from a run's ranked nodes and ValidationReport.
type Emitter struct {
	writer     Writer
	compactCap int
}

// New creates an Emitter. compactCap <= 0 falls back to CompactCap.
func New(writer Writer, compactCap int) *Emitter {
	if compactCap <= 0 {
		compactCap = CompactCap
	}
	return &Emitter{writer: writer, compactCap: compactCap}
}

// Emit writes every output artifact for one run. now is the run timestamp
// stamped onto the stats record — injected rather than read via time.Now()
// so the Emitter stays as testable as the rest of the pipeline.
func (e *Emitter) Emit(ctx context.Context, ranked []node.Node, report validate.Report, now time.Time) error {
	empty := len(ranked) == 0

	compact := ranked
	if len(compact) > e.compactCap {
		compact = compact[:e.compactCap]
	}

	if err := e.writer.WriteRankedConfig(ctx, ranked, empty); err != nil {
		return err
	}
	if err := e.writer.WriteCompactConfig(ctx, compact, empty); err != nil {
		return err
	}
	if err := e.writer.WriteURIList(ctx, "ranked", ranked, empty); err != nil {
		return err
	}
	if err := e.writer.WriteURIList(ctx, "compact", compact, empty); err != nil {
		return err
	}
	return e.writer.WriteStats(ctx, buildStats(report, now))
}

func buildStats(report validate.Report, now time.Time) Stats {
	var successRate float64
	if report.TotalNodes > 0 {
		successRate = float64(report.ValidNodes) / float64(report.TotalNodes)
	}

	perSub := make(map[string]SubscriptionStat, len(report.PerSubscription))
	for url, s := range report.PerSubscription {
		perSub[url] = SubscriptionStat{Total: s.Total, Valid: s.Valid, AvgLatencyMs: s.AvgLatencyMs}
	}

	return Stats{
		Timestamp:       now,
		TotalNodes:      report.TotalNodes,
		ValidNodes:      report.ValidNodes,
		SuccessRate:     successRate,
		PerSubscription: perSub,
	}
}
