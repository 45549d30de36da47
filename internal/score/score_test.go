package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"proxypulse/internal/domain/subscription"
)

func TestCompute_WorkedExample(t *testing.T) {
	var history []subscription.HistoryEntry
	for i := 0; i < 5; i++ {
		history = append(history, subscription.HistoryEntry{
			Timestamp:        time.Now(),
			TotalNodesParsed: 10,
			ValidNodes:       10,
			AverageLatencyMs: 300,
			FetchOutcome:     subscription.FetchSucceeded,
		})
	}

	got := Compute(history, 2000)
	assert.Equal(t, 86, got)
	assert.Equal(t, subscription.TierOften, Tier(got))
}

func TestCompute_FailedFetchZeroesSuccessAndLatency(t *testing.T) {
	history := []subscription.HistoryEntry{
		{TotalNodesParsed: 0, ValidNodes: 0, FetchOutcome: subscription.FetchFailed},
	}
	got := Compute(history, 2000)
	assert.Equal(t, subscription.TierSuspended, Tier(got))
}

func TestCompute_EmptyHistoryIsZero(t *testing.T) {
	assert.Equal(t, 0, Compute(nil, 2000))
}

func TestCompute_ScoreWithinBounds(t *testing.T) {
	history := []subscription.HistoryEntry{
		{TotalNodesParsed: 100, ValidNodes: 100, AverageLatencyMs: 1, FetchOutcome: subscription.FetchSucceeded},
	}
	got := Compute(history, 2000)
	assert.GreaterOrEqual(t, got, 0)
	assert.LessOrEqual(t, got, 100)
}
