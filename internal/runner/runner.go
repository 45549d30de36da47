// Package runner orchestrates one full pipeline pass: Selector -> Fetcher ->
// Ingestor -> Validator -> Scorer -> Store -> Emitter. Each run is tagged
// with a github.com/google/uuid correlation ID threaded through every log
// line, so overlapping serve iterations are distinguishable.
package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"proxypulse/internal/domain/subscription"
	"proxypulse/internal/emit"
	"proxypulse/internal/errs"
	"proxypulse/internal/fetch"
	"proxypulse/internal/ingest"
	"proxypulse/internal/logging"
	"proxypulse/internal/score"
	"proxypulse/internal/selector"
	"proxypulse/internal/shared/runclock"
	"proxypulse/internal/store"
	"proxypulse/internal/validate"
)

// Runner wires together one run's collaborators. All of them are
// constructed by the caller (cmd/proxypulse) from internal/config, so the
// Runner itself stays free of configuration-parsing concerns.
type Runner struct {
	store        *store.Store
	fetcher      *fetch.Fetcher
	validator    *validate.Validator
	emitter      *emit.Emitter
	log          logging.Interface
	maxLatencyMs int
}

// New builds a Runner. maxLatencyMs must match the Validator's configured
// max_latency_ms, since the Scorer's latency_quality signal needs it too
// and the Scorer has no access to the Validator's Config.
func New(st *store.Store, fetcher *fetch.Fetcher, validator *validate.Validator, emitter *emit.Emitter, log logging.Interface, maxLatencyMs int) *Runner {
	return &Runner{store: st, fetcher: fetcher, validator: validator, emitter: emitter, log: log, maxLatencyMs: maxLatencyMs}
}

// Summary is a run's user-visible result, for the caller to log or print.
type Summary struct {
	RunID              string
	SubscriptionsTotal  int
	SubscriptionsPicked int
	NodesParsed         int
	NodesValid          int
	Duration            time.Duration
}

// Run executes one full pass over urls. now is the run's injected clock
// reading (see runclock), used to seed the Selector's PRNG and to stamp
// every timestamp this run writes.
//
// Errors returned here are run-fatal per the error-handling design: the
// caller (cmd/proxypulse) should exit non-zero and must not assume any
// partial Store write occurred — Persist is the last operation performed
// and only runs after every subscription's score update has already
// succeeded in memory.
func (r *Runner) Run(ctx context.Context, urls []string, now time.Time) (Summary, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := r.log.With(zap.String("run_id", runID))

	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", errs.ErrRunCancelled, err)
	}

	states, err := r.store.UpsertSubscriptions(ctx, urls, now)
	if err != nil {
		return Summary{}, fmt.Errorf("runner: load subscription state: %w", err)
	}

	runNumber, err := r.store.NextRunNumber(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("runner: advance run counter: %w", err)
	}

	decisions := selector.Select(states, runclock.DayOrdinal(now), runNumber)
	selectedURLs := selector.SelectedURLs(decisions)
	log.Infow("subscriptions selected", "total", len(states), "selected", len(selectedURLs), "run_number", runNumber)

	fetchResults := r.fetcher.FetchAll(ctx, selectedURLs)
	ingestReport := ingest.Ingest(fetchResults)
	log.Infow("nodes ingested", "parsed", sumParsed(ingestReport), "unique", len(ingestReport.Nodes))

	ranked, validateReport := r.validator.Run(ctx, ingestReport.Nodes)
	validNodes := validate.ValidPrefix(ranked)
	log.Infow("validation complete", "total", validateReport.TotalNodes, "valid", validateReport.ValidNodes, "duration", validateReport.Duration)

	if err := ctx.Err(); err != nil {
		log.Warnw("run cancelled mid-validation, skipping persist", "error", err)
		return Summary{}, fmt.Errorf("%w: %v", errs.ErrRunCancelled, err)
	}

	if err := r.emitter.Emit(ctx, validNodes, validateReport, now); err != nil {
		log.Errorw("emit failed", "error", err)
	}

	finalStates, updated := r.applyScoring(decisions, ingestReport, validateReport, now)

	if len(updated) > 0 {
		if err := r.store.RecordRun(ctx, updated, now); err != nil {
			log.Errorw("score history append failed", "error", err)
		}
	}

	if err := r.store.Persist(ctx, finalStates); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", errs.ErrPersistFailed, err)
	}

	logTopBottom(log, finalStates)

	return Summary{
		RunID:               runID,
		SubscriptionsTotal:  len(finalStates),
		SubscriptionsPicked: len(selectedURLs),
		NodesParsed:         sumParsed(ingestReport),
		NodesValid:          validateReport.ValidNodes,
		Duration:            time.Since(start),
	}, nil
}

// applyScoring folds each selected subscription's fetch/ingest/validate
// results into a new HistoryEntry and a freshly-computed score, leaving
// every non-selected subscription's state untouched. It returns the full
// state set (for Persist) and the subset that actually changed (for
// RecordRun's audit log).
func (r *Runner) applyScoring(decisions []selector.Decision, ingestReport ingest.Report, validateReport validate.Report, now time.Time) ([]subscription.State, []subscription.State) {
	tallyByURL := make(map[string]ingest.Tally, len(ingestReport.Tallies))
	for _, t := range ingestReport.Tallies {
		tallyByURL[t.URL] = t
	}

	final := make([]subscription.State, 0, len(decisions))
	updated := make([]subscription.State, 0, len(decisions))

	for _, d := range decisions {
		if !d.Selected {
			final = append(final, d.State)
			continue
		}

		url := d.State.URL()
		tally, ok := tallyByURL[url]

		entry := subscription.HistoryEntry{Timestamp: now}
		if !ok || tally.Failed {
			entry.FetchOutcome = subscription.FetchFailed
		} else {
			entry.FetchOutcome = subscription.FetchSucceeded
			entry.TotalNodesParsed = tally.Parsed
			if stats, ok := validateReport.PerSubscription[url]; ok {
				entry.ValidNodes = stats.Valid
				entry.AverageLatencyMs = stats.AvgLatencyMs
			}
		}

		st := d.State.RecordRun(entry)
		st = st.ApplyScore(score.Compute(st.History(), r.maxLatencyMs))

		final = append(final, st)
		updated = append(updated, st)
	}

	return final, updated
}

func sumParsed(report ingest.Report) int {
	total := 0
	for _, t := range report.Tallies {
		total += t.Parsed
	}
	return total
}

// logTopBottom logs the top-5 and bottom-5 subscriptions by score, the
// user-visible run summary the error-handling design calls for.
func logTopBottom(log logging.Interface, states []subscription.State) {
	if len(states) == 0 {
		return
	}
	sorted := make([]subscription.State, len(states))
	copy(sorted, states)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CurrentScore() > sorted[j].CurrentScore() })

	top := sorted
	if len(top) > 5 {
		top = top[:5]
	}
	log.Infow("top subscriptions", "subscriptions", summarize(top))

	bottomStart := len(sorted) - 5
	if bottomStart < 0 {
		bottomStart = 0
	}
	log.Infow("bottom subscriptions", "subscriptions", summarize(sorted[bottomStart:]))
}

func summarize(states []subscription.State) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, fmt.Sprintf("%s=%d", s.DisplayName(), s.CurrentScore()))
	}
	return out
}
