// Package score implements the Scorer: a pure function from a subscription's
// run history to a score, plus the score-to-tier lookup. It deliberately has
// no dependency on internal/store and does no I/O: Compute takes the history
// (with this run's entry already appended) and the latency threshold and
// returns the score; the caller applies it to the State, and the Store stays
// the only side-effecting boundary.
package score

import (
	"math"

	"proxypulse/internal/domain/subscription"
)

const (
	weightSuccessRate     = 0.40
	weightLatencyQuality  = 0.30
	weightVolume          = 0.20
	weightStability       = 0.10

	targetValidNodes = 20
	lastNRuns        = 5
)

// Compute returns the rounded [0,100] score for a subscription given its run
// history (already including the current run's HistoryEntry, most recent
// last) and the configured max_latency_ms threshold used by the Validator.
func Compute(history []subscription.HistoryEntry, maxLatencyMs int) int {
	if len(history) == 0 {
		return 0
	}
	recent := lastN(history, lastNRuns)

	successRate := avg(recent, func(e subscription.HistoryEntry) float64 {
		if e.FetchOutcome == subscription.FetchFailed {
			return 0
		}
		return float64(e.ValidNodes) / math.Max(float64(e.TotalNodesParsed), 1)
	})

	latencyQuality := avg(recent, func(e subscription.HistoryEntry) float64 {
		if e.FetchOutcome == subscription.FetchFailed {
			return 0
		}
		return math.Max(0, 1-e.AverageLatencyMs/float64(maxLatencyMs))
	})

	last := history[len(history)-1]
	volume := math.Min(1, float64(last.ValidNodes)/targetValidNodes)

	stability := computeStability(recent)

	total := weightSuccessRate*successRate +
		weightLatencyQuality*latencyQuality +
		weightVolume*volume +
		weightStability*stability

	return int(math.Round(total * 100))
}

// Tier maps score to its frequency tier via subscription.TierForScore,
// exposed here too so callers that only have a score (e.g. tests) don't need
// to import the subscription package just for this.
func Tier(score int) subscription.Tier {
	return subscription.TierForScore(score)
}

func lastN(history []subscription.HistoryEntry, n int) []subscription.HistoryEntry {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func avg(entries []subscription.HistoryEntry, f func(subscription.HistoryEntry) float64) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		sum += f(e)
	}
	return sum / float64(len(entries))
}

// computeStability is 1 − stddev(valid_nodes)/max(mean,1), clamped to [0,1].
func computeStability(entries []subscription.HistoryEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	values := make([]float64, len(entries))
	sum := 0.0
	for i, e := range entries {
		values[i] = float64(e.ValidNodes)
		sum += values[i]
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	stddev := math.Sqrt(variance)

	stability := 1 - stddev/math.Max(mean, 1)
	return math.Max(0, math.Min(1, stability))
}
