// Package store implements the Store: file-backed persistence for
// subscription state, a score-history audit log, and an IP-geo cache.
// Interfaces follow a context-first, narrow-verb repository shape, backed
// by flat UTF-8 files rather than a relational store, since the data model
// calls for human-inspectable state (see DESIGN.md). Writes are atomic via
// a temp-file-then-rename sequence.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"proxypulse/internal/domain/subscription"
	"proxypulse/internal/logging"
	"proxypulse/internal/shared/runclock"
)

const (
	subscriptionsFileName = "subscriptions.json"
	scoreHistoryFileName  = "score_history.jsonl"
	ipCacheFileName       = "ip_cache.json"
	filePerm              = 0o644
)

// GeoBackend is the optional pluggable backend for the IP-geo cache. The
// default Store uses the file-backed implementation in this package;
// RedisGeoCache in rediscache.go is an alternative for deployments that
// already run Redis for other state.
type GeoBackend interface {
	Get(ctx context.Context, ip string) (string, bool, error)
	Set(ctx context.Context, ip, location string) error
}

// Store persists subscription state and the IP-geo cache under dir. It is
// single-writer/single-reader: callers must not run two Store instances
// against the same dir concurrently.
type Store struct {
	dir string
	log logging.Interface
	geo GeoBackend
}

// New creates a Store rooted at dir, creating it if necessary. geo may be
// nil, in which case IP-geo lookups use the file-backed cache in this
// package.
func New(dir string, log logging.Interface, geo GeoBackend) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create state dir: %w", err)
	}
	return &Store{dir: dir, log: log, geo: geo}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// LoadSubscriptions reads subscriptions.json. A missing file yields an empty
// slice; a corrupt file is logged and also yields an empty slice — neither
// case aborts the caller's run.
func (s *Store) LoadSubscriptions(ctx context.Context) ([]subscription.State, error) {
	data, err := os.ReadFile(s.path(subscriptionsFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		s.log.Errorw("store: failed to read subscriptions file", "error", err)
		return nil, nil
	}

	var file subscriptionsFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.log.Errorw("store: subscriptions file corrupt, starting from empty state", "error", err)
		return nil, nil
	}

	states := make([]subscription.State, 0, len(file.Subscriptions))
	for _, r := range file.Subscriptions {
		states = append(states, fromRecord(r))
	}
	return states, nil
}

// UpsertSubscriptions merges urls into the existing state set: URLs already
// tracked keep their state untouched, new URLs are created with a fresh
// protection counter. The returned slice is sorted by URL so downstream
// ordering (Selector, Persist) is stable across runs.
func (s *Store) UpsertSubscriptions(ctx context.Context, urls []string, now time.Time) ([]subscription.State, error) {
	existing, err := s.LoadSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	byURL := make(map[string]subscription.State, len(existing))
	for _, st := range existing {
		byURL[st.URL()] = st
	}

	for _, url := range urls {
		if _, ok := byURL[url]; ok {
			continue
		}
		st, err := subscription.New(url, now)
		if err != nil {
			s.log.Warnw("store: skipping invalid subscription url", "url", url, "error", err)
			continue
		}
		byURL[url] = st
	}

	merged := make([]subscription.State, 0, len(byURL))
	for _, st := range byURL {
		merged = append(merged, st)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].URL() < merged[j].URL() })
	return merged, nil
}

// RecordRun appends one scoreHistoryLine per state to the append-only
// score_history.jsonl audit log. It does not touch subscriptions.json —
// callers call Persist separately once every state's score update succeeds,
// so a RecordRun failure never leaves subscriptions.json partially written.
func (s *Store) RecordRun(ctx context.Context, states []subscription.State, now time.Time) error {
	f, err := os.OpenFile(s.path(scoreHistoryFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("store: open score history log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, st := range states {
		var outcome subscription.FetchOutcome
		if h := st.History(); len(h) > 0 {
			outcome = h[len(h)-1].FetchOutcome
		}
		var valid int
		if h := st.History(); len(h) > 0 {
			valid = h[len(h)-1].ValidNodes
		}
		line := scoreHistoryLine{
			Timestamp:   runclock.FormatTimestamp(now),
			URL:         st.URL(),
			Score:       st.CurrentScore(),
			Tier:        string(st.FrequencyTier()),
			ValidNodes:  valid,
			FetchResult: string(outcome),
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("store: write score history line for %s: %w", st.URL(), err)
		}
	}
	return nil
}

// Persist atomically rewrites subscriptions.json with the given state set:
// written to a temp file in the same directory, then renamed into place, so
// a crash mid-write never leaves a truncated or partially-written file on
// disk and a reader never observes one.
func (s *Store) Persist(ctx context.Context, states []subscription.State) error {
	sorted := make([]subscription.State, len(states))
	copy(sorted, states)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL() < sorted[j].URL() })

	file := subscriptionsFile{Subscriptions: make([]subscriptionRecord, 0, len(sorted))}
	for _, st := range sorted {
		file.Subscriptions = append(file.Subscriptions, toRecord(st))
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal subscriptions: %w", err)
	}
	return s.writeAtomic(subscriptionsFileName, data)
}

// PruneStale drops subscriptions whose most recent activity (last history
// entry's timestamp, or CreatedAt if it has none) is older than maxAge,
// relative to now. The core never calls this itself — it is exposed for an
// external caller's lifecycle policy, per the data model's "never deleted by
// core" rule. Returns the retained set; the caller must still call Persist
// to commit it.
func (s *Store) PruneStale(ctx context.Context, maxAge time.Duration, now time.Time) ([]subscription.State, int, error) {
	states, err := s.LoadSubscriptions(ctx)
	if err != nil {
		return nil, 0, err
	}

	retained := make([]subscription.State, 0, len(states))
	pruned := 0
	for _, st := range states {
		lastActive := st.CreatedAt()
		if h := st.History(); len(h) > 0 {
			lastActive = h[len(h)-1].Timestamp
		}
		if now.Sub(lastActive) > maxAge {
			pruned++
			continue
		}
		retained = append(retained, st)
	}
	return retained, pruned, nil
}

// writeAtomic writes data to a temp file under dir and renames it over
// name, so readers never see a partially-written file.
func (s *Store) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: rename temp file into place: %w", err)
	}
	return nil
}
