package store

import (
	"proxypulse/internal/domain/subscription"
	"proxypulse/internal/shared/runclock"
)

// subscriptionsFile is the on-disk shape of subscriptions.json: a flat
// array, sorted by URL at write time so diffs stay small between runs.
type subscriptionsFile struct {
	Subscriptions []subscriptionRecord `json:"subscriptions"`
}

type subscriptionRecord struct {
	URL               string            `json:"url"`
	DisplayName       string            `json:"display_name"`
	CreatedAt         string            `json:"created_at"`
	RunsUsed          int               `json:"runs_used"`
	RunsSucceeded     int               `json:"runs_succeeded"`
	History           []historyRecord   `json:"history"`
	CurrentScore      int               `json:"current_score"`
	ProtectionCounter int               `json:"protection_counter"`
	LastSelectedWeek  int               `json:"last_selected_week"`
}

type historyRecord struct {
	Timestamp        string  `json:"timestamp"`
	TotalNodesParsed int     `json:"total_nodes_parsed"`
	ValidNodes       int     `json:"valid_nodes"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	FetchOutcome     string  `json:"fetch_outcome"`
}

// scoreHistoryLine is one line of the append-only score_history.jsonl audit
// log, written once per subscription at the end of a run.
type scoreHistoryLine struct {
	Timestamp   string `json:"timestamp"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Tier        string `json:"tier"`
	ValidNodes  int    `json:"valid_nodes"`
	FetchResult string `json:"fetch_outcome"`
}

func toRecord(s subscription.State) subscriptionRecord {
	history := make([]historyRecord, 0, len(s.History()))
	for _, h := range s.History() {
		history = append(history, historyRecord{
			Timestamp:        runclock.FormatTimestamp(h.Timestamp),
			TotalNodesParsed: h.TotalNodesParsed,
			ValidNodes:       h.ValidNodes,
			AverageLatencyMs: h.AverageLatencyMs,
			FetchOutcome:     string(h.FetchOutcome),
		})
	}
	return subscriptionRecord{
		URL:               s.URL(),
		DisplayName:       s.DisplayName(),
		CreatedAt:         runclock.FormatTimestamp(s.CreatedAt()),
		RunsUsed:          s.RunsUsed(),
		RunsSucceeded:     s.RunsSucceeded(),
		History:           history,
		CurrentScore:      s.CurrentScore(),
		ProtectionCounter: s.ProtectionCounter(),
		LastSelectedWeek:  s.LastSelectedWeek(),
	}
}

// fromRecord rebuilds a subscription.State from a persisted record. A
// malformed created_at falls back to the current time and a malformed
// history timestamp to the record's created_at, rather than failing the
// whole load — a single bad record should degrade, not abort
// LoadSubscriptions.
func fromRecord(r subscriptionRecord) subscription.State {
	createdAt, err := runclock.ParseTimestamp(r.CreatedAt)
	if err != nil {
		createdAt = runclock.NowUTC()
	}
	history := make([]subscription.HistoryEntry, 0, len(r.History))
	for _, h := range r.History {
		ts, err := runclock.ParseTimestamp(h.Timestamp)
		if err != nil {
			ts = createdAt
		}
		history = append(history, subscription.HistoryEntry{
			Timestamp:        ts,
			TotalNodesParsed: h.TotalNodesParsed,
			ValidNodes:       h.ValidNodes,
			AverageLatencyMs: h.AverageLatencyMs,
			FetchOutcome:     subscription.FetchOutcome(h.FetchOutcome),
		})
	}
	return subscription.Reconstruct(
		r.URL, r.DisplayName, createdAt,
		r.RunsUsed, r.RunsSucceeded, history, r.CurrentScore,
		r.ProtectionCounter, r.LastSelectedWeek,
	)
}
