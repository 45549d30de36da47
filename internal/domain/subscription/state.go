// Package subscription models the subscription selector and reputation
// engine's state: one SubscriptionState per tracked URL, a bounded history
// of recent runs, and the Tier value object derived from score. It
// deliberately skips sync.RWMutex/optimistic-locking machinery — a
// SubscriptionState here is loaded, mutated once by the Scorer, and
// persisted by a single-writer Store, never shared across goroutines.
package subscription

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MaxHistory is the cap on retained HistoryEntry records (K in the data
// model: "exponential history of the last K <= 20 runs").
const MaxHistory = 20

// ProtectionCounterInitial is the number of runs a newly added subscription
// is guaranteed selection for, regardless of score.
const ProtectionCounterInitial = 3

// FetchOutcome records whether a run's fetch of this subscription succeeded.
type FetchOutcome string

const (
	FetchSucceeded FetchOutcome = "success"
	FetchFailed    FetchOutcome = "failure"
)

// HistoryEntry records one run's outcome for a subscription.
type HistoryEntry struct {
	Timestamp         time.Time
	TotalNodesParsed  int
	ValidNodes        int
	AverageLatencyMs  float64
	FetchOutcome      FetchOutcome
}

// State is a subscription's persistent and derived state.
type State struct {
	url                string
	displayName        string
	createdAt          time.Time
	runsUsed           int
	runsSucceeded      int
	history            []HistoryEntry
	currentScore       int
	frequencyTier      Tier
	protectionCounter  int
	lastSelectedWeek   int // used by the Selector's weekly cadence for "rarely"
}

// New creates a brand-new tracked subscription with protection_counter = 3,
// as required when upserting a previously-unseen URL.
func New(rawURL string, createdAt time.Time) (State, error) {
	if strings.TrimSpace(rawURL) == "" {
		return State{}, ErrInvalidURL
	}
	name, err := displayNameFromURL(rawURL)
	if err != nil {
		return State{}, fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}
	return State{
		url:               rawURL,
		displayName:        name,
		createdAt:          createdAt,
		protectionCounter:  ProtectionCounterInitial,
		frequencyTier:      TierForScore(0),
	}, nil
}

// Reconstruct rebuilds a State from persisted fields, for Store loading. No
// validation beyond what New already enforced when the record was created;
// the Store is trusted to round-trip its own writes.
func Reconstruct(url, displayName string, createdAt time.Time, runsUsed, runsSucceeded int, history []HistoryEntry, currentScore int, protectionCounter, lastSelectedWeek int) State {
	return State{
		url: url, displayName: displayName, createdAt: createdAt,
		runsUsed: runsUsed, runsSucceeded: runsSucceeded,
		history: history, currentScore: currentScore,
		frequencyTier:     TierForScore(currentScore),
		protectionCounter: protectionCounter,
		lastSelectedWeek:  lastSelectedWeek,
	}
}

func displayNameFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("cannot derive display name from %q", raw)
	}
	return u.Hostname(), nil
}

func (s State) URL() string               { return s.url }
func (s State) DisplayName() string       { return s.displayName }
func (s State) CreatedAt() time.Time      { return s.createdAt }
func (s State) RunsUsed() int             { return s.runsUsed }
func (s State) RunsSucceeded() int        { return s.runsSucceeded }
func (s State) History() []HistoryEntry   { return s.history }
func (s State) CurrentScore() int         { return s.currentScore }
func (s State) FrequencyTier() Tier       { return s.frequencyTier }
func (s State) ProtectionCounter() int    { return s.protectionCounter }
func (s State) LastSelectedWeek() int     { return s.lastSelectedWeek }

// DecrementProtection consumes one guaranteed-selection run, floored at 0.
func (s State) DecrementProtection() State {
	if s.protectionCounter > 0 {
		s.protectionCounter--
	}
	return s
}

// MarkSelectedWeek records the week (run_number/7) in which a "rarely" tier
// subscription was last selected, for the Selector's cadence check.
func (s State) MarkSelectedWeek(week int) State {
	s.lastSelectedWeek = week
	return s
}

// RecordRun appends a HistoryEntry, trimming to MaxHistory (oldest dropped
// first), and bumps the usage counters. It does not recompute score/tier —
// that is the Scorer's job, applied via ApplyScore after RecordRun.
func (s State) RecordRun(entry HistoryEntry) State {
	s.runsUsed++
	if entry.FetchOutcome == FetchSucceeded {
		s.runsSucceeded++
	}
	history := append(append([]HistoryEntry{}, s.history...), entry)
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	s.history = history
	return s
}

// ApplyScore sets the derived score/tier fields. Called by the Scorer after
// RecordRun; kept as a separate step so the pure scoring function
// (internal/score) never needs to know about State's other fields.
func (s State) ApplyScore(score int) State {
	s.currentScore = score
	s.frequencyTier = TierForScore(score)
	return s
}
