// Package selector implements the per-run subscription Selector: given the
// Store's current SubscriptionState list and a run number, it decides which
// subscriptions get fetched this run. Seeded off the run's day-of-year
// (runclock.DayOrdinal) rather than wall-clock nanoseconds so a re-run
// within the same day reproduces the same probabilistic choices — grounded
// on the source material's explicit reproducibility design note.
package selector

import (
	"math/rand/v2"

	"proxypulse/internal/domain/subscription"
)

// Decision is one subscription's selection outcome plus the state updates
// the caller must persist at end-of-run (protection counter decrement,
// rarely-tier week bookkeeping).
type Decision struct {
	State    subscription.State
	Selected bool
}

// Select applies the tier/protection rules from the source subscription
// selector design to every tracked subscription, in the order given, and
// returns the same order with Selected flags and any State updates.
//
// dayOrdinal seeds the PRNG (stable within a day); runNumber drives the
// "rarely" tier's weekly cadence (selected iff runNumber/7 differs from the
// state's last-selected week).
func Select(states []subscription.State, dayOrdinal, runNumber int) []Decision {
	rng := rand.New(rand.NewPCG(uint64(dayOrdinal), uint64(dayOrdinal)))
	week := runNumber / 7

	decisions := make([]Decision, 0, len(states))
	for _, s := range states {
		selected := false

		switch {
		case s.ProtectionCounter() > 0:
			selected = true
			s = s.DecrementProtection()
		case s.FrequencyTier() == subscription.TierDaily:
			selected = true
		case s.FrequencyTier() == subscription.TierSuspended:
			selected = false
		case s.FrequencyTier() == subscription.TierRarely:
			if week != s.LastSelectedWeek() {
				selected = true
				s = s.MarkSelectedWeek(week)
			}
		default:
			if p, ok := s.FrequencyTier().Probability(); ok {
				selected = rng.Float64() < p
			}
		}

		decisions = append(decisions, Decision{State: s, Selected: selected})
	}
	return decisions
}

// SelectedURLs extracts the URLs of every selected Decision, preserving
// order, for handoff to the Fetcher.
func SelectedURLs(decisions []Decision) []string {
	urls := make([]string, 0, len(decisions))
	for _, d := range decisions {
		if d.Selected {
			urls = append(urls, d.State.URL())
		}
	}
	return urls
}
