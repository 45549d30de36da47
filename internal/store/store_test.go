package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxypulse/internal/domain/subscription"
	"proxypulse/internal/logging"
)

func writeFile(dir, name string, data []byte) error {
	return os.WriteFile(filepath.Join(dir, name), data, filePerm)
}

func readFile(dir, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, name))
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func testLogger(t *testing.T) logging.Interface {
	t.Helper()
	require.NoError(t, logging.Init(logging.Config{Level: "error", Format: "json", OutputPath: "stdout"}))
	return logging.NewLogger()
}

func TestLoadSubscriptions_MissingFileYieldsEmpty(t *testing.T) {
	s, err := New(t.TempDir(), testLogger(t), nil)
	require.NoError(t, err)

	states, err := s.LoadSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestLoadSubscriptions_CorruptFileYieldsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(dir, subscriptionsFileName, []byte("{not json")))

	s, err := New(dir, testLogger(t), nil)
	require.NoError(t, err)

	states, err := s.LoadSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestPersist_RoundTripsState(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, testLogger(t), nil)
	require.NoError(t, err)

	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	st, err := subscription.New("https://sub.example/a", now)
	require.NoError(t, err)
	st = st.RecordRun(subscription.HistoryEntry{
		Timestamp:        now,
		TotalNodesParsed: 10,
		ValidNodes:       8,
		AverageLatencyMs: 120,
		FetchOutcome:     subscription.FetchSucceeded,
	})
	st = st.ApplyScore(75)

	require.NoError(t, s.Persist(context.Background(), []subscription.State{st}))

	loaded, err := s.LoadSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, st.URL(), loaded[0].URL())
	assert.Equal(t, st.CurrentScore(), loaded[0].CurrentScore())
	assert.Equal(t, st.FrequencyTier(), loaded[0].FrequencyTier())
	require.Len(t, loaded[0].History(), 1)
	assert.Equal(t, 8, loaded[0].History()[0].ValidNodes)
	assert.True(t, st.CreatedAt().Equal(loaded[0].CreatedAt()))
}

func TestUpsertSubscriptions_PreservesExistingAddsNew(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, testLogger(t), nil)
	require.NoError(t, err)

	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	existing, err := subscription.New("https://sub.example/a", now)
	require.NoError(t, err)
	existing = existing.DecrementProtection().DecrementProtection().DecrementProtection().ApplyScore(60)
	require.NoError(t, s.Persist(context.Background(), []subscription.State{existing}))

	merged, err := s.UpsertSubscriptions(context.Background(), []string{"https://sub.example/a", "https://sub.example/b"}, now)
	require.NoError(t, err)
	require.Len(t, merged, 2)

	assert.Equal(t, "https://sub.example/a", merged[0].URL())
	assert.Equal(t, 60, merged[0].CurrentScore())
	assert.Equal(t, 0, merged[0].ProtectionCounter())

	assert.Equal(t, "https://sub.example/b", merged[1].URL())
	assert.Equal(t, subscription.ProtectionCounterInitial, merged[1].ProtectionCounter())
}

func TestRecordRun_AppendsOneJSONLinePerSubscription(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, testLogger(t), nil)
	require.NoError(t, err)

	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	a, _ := subscription.New("https://sub.example/a", now)
	a = a.ApplyScore(80)
	b, _ := subscription.New("https://sub.example/b", now)
	b = b.ApplyScore(20)

	require.NoError(t, s.RecordRun(context.Background(), []subscription.State{a, b}, now))
	require.NoError(t, s.RecordRun(context.Background(), []subscription.State{a, b}, now))

	data, err := readFile(dir, scoreHistoryFileName)
	require.NoError(t, err)
	lines := splitNonEmptyLines(string(data))
	assert.Len(t, lines, 4)
}

func TestPruneStale_DropsInactiveSubscriptions(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, testLogger(t), nil)
	require.NoError(t, err)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	stale, _ := subscription.New("https://sub.example/stale", old)
	fresh, _ := subscription.New("https://sub.example/fresh", recent)
	require.NoError(t, s.Persist(context.Background(), []subscription.State{stale, fresh}))

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	retained, pruned, err := s.PruneStale(context.Background(), 24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	require.Len(t, retained, 1)
	assert.Equal(t, "https://sub.example/fresh", retained[0].URL())
}

func TestNextRunNumber_IncrementsAndPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, testLogger(t), nil)
	require.NoError(t, err)

	n1, err := s.NextRunNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n1)

	n2, err := s.NextRunNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n2)

	s2, err := New(dir, testLogger(t), nil)
	require.NoError(t, err)
	n3, err := s2.NextRunNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n3)
}

func TestIPGeoCache_FileBackedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, testLogger(t), nil)
	require.NoError(t, err)

	_, ok, err := s.GetIPGeo(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetIPGeo(context.Background(), "1.2.3.4", "US-West"))
	loc, ok, err := s.GetIPGeo(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "US-West", loc)
}
