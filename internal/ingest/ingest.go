// Package ingest implements the Ingestor: it drives the Codec over a run's
// FetchResults and produces a deduplicated, stably-ordered Node list plus a
// per-subscription {parsed, unique} tally for the Scorer.
package ingest

import (
	"proxypulse/internal/codec"
	"proxypulse/internal/domain/node"
	"proxypulse/internal/fetch"
)

// Tally is one subscription's contribution to this run's node set.
type Tally struct {
	URL    string
	Parsed int
	Unique int
	Failed bool // true if the Fetcher could not retrieve the body at all
}

// Report is the Ingestor's output: a deduplicated, first-seen-ordered Node
// list plus one Tally per input FetchResult, in the same order.
type Report struct {
	Nodes   []node.Node
	Tallies []Tally
}

// Ingest applies Codec.Decode to every successful FetchResult, in order, and
// deduplicates by canonical identity: the first node seen for a given key
// wins, including its parameter bag and provenance — later duplicates
// (within or across subscriptions) are dropped.
func Ingest(results []fetch.Result) Report {
	seen := make(map[node.Key]struct{})
	var report Report

	for _, r := range results {
		tally := Tally{URL: r.URL}
		if r.Outcome != fetch.OutcomeSuccess {
			tally.Failed = true
			report.Tallies = append(report.Tallies, tally)
			continue
		}

		decoded := codec.Decode(r.Body, r.URL)
		tally.Parsed = decoded.Parsed

		for _, n := range decoded.Nodes {
			key := n.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			report.Nodes = append(report.Nodes, n)
			tally.Unique++
		}

		report.Tallies = append(report.Tallies, tally)
	}

	return report
}
