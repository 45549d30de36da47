package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxypulse/internal/emit"
	"proxypulse/internal/errs"
	"proxypulse/internal/fetch"
	"proxypulse/internal/logging"
	"proxypulse/internal/store"
	"proxypulse/internal/validate"
)

func testLogger(t *testing.T) logging.Interface {
	t.Helper()
	require.NoError(t, logging.Init(logging.Config{Level: "error", Format: "json", OutputPath: "stdout"}))
	return logging.NewLogger()
}

func TestRun_EndToEndSingleSSSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ss://YWVzLTI1Ni1nY206cGFzc3dvcmQ=@127.0.0.1:1#test\n"))
	}))
	defer srv.Close()

	log := testLogger(t)
	st, err := store.New(t.TempDir(), log, nil)
	require.NoError(t, err)

	f := fetch.New(fetch.DefaultConfig(), log)

	vcfg := validate.DefaultConfig()
	vcfg.Mode = validate.ModeLenient // avoid a real TCP dial to a bogus port
	v := validate.New(vcfg, log)

	e := emit.New(emit.NopWriter{}, 20)

	r := New(st, f, v, e, log, vcfg.MaxLatencyMs)

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	summary, err := r.Run(context.Background(), []string{srv.URL}, now)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SubscriptionsTotal)
	assert.Equal(t, 1, summary.SubscriptionsPicked)
	assert.Equal(t, 1, summary.NodesParsed)
	assert.Equal(t, 1, summary.NodesValid)
	assert.NotEmpty(t, summary.RunID)

	states, err := st.LoadSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Len(t, states[0].History(), 1)
	assert.Greater(t, states[0].CurrentScore(), 0)
}

func TestRun_ZeroSubscriptionsProducesEmptySummary(t *testing.T) {
	log := testLogger(t)
	st, err := store.New(t.TempDir(), log, nil)
	require.NoError(t, err)
	f := fetch.New(fetch.DefaultConfig(), log)
	v := validate.New(validate.DefaultConfig(), log)
	e := emit.New(emit.NopWriter{}, 20)
	r := New(st, f, v, e, log, 2000)

	summary, err := r.Run(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SubscriptionsTotal)
	assert.Equal(t, 0, summary.NodesValid)
}

func TestRun_FailedFetchRecordsFailureHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	log := testLogger(t)
	st, err := store.New(t.TempDir(), log, nil)
	require.NoError(t, err)
	f := fetch.New(fetch.DefaultConfig(), log)
	v := validate.New(validate.DefaultConfig(), log)
	e := emit.New(emit.NopWriter{}, 20)
	r := New(st, f, v, e, log, 2000)

	_, err = r.Run(context.Background(), []string{srv.URL}, time.Now())
	require.NoError(t, err)

	states, err := st.LoadSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Len(t, states[0].History(), 1)
	assert.Equal(t, "failure", string(states[0].History()[0].FetchOutcome))
	// success_rate and latency_quality are forced to 0 for a failed fetch,
	// but a lone zero-valid-nodes run still reads as "stable" — the score
	// isn't literally zero, just low.
	assert.LessOrEqual(t, states[0].CurrentScore(), 10)
}

func TestRun_CancelledContextIsRunFatal(t *testing.T) {
	log := testLogger(t)
	st, err := store.New(t.TempDir(), log, nil)
	require.NoError(t, err)
	f := fetch.New(fetch.DefaultConfig(), log)
	v := validate.New(validate.DefaultConfig(), log)
	e := emit.New(emit.NopWriter{}, 20)
	r := New(st, f, v, e, log, 2000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Run(ctx, []string{"https://example.com/sub"}, time.Now())
	assert.Error(t, err)
}

// TestRun_CancellationMidFetchIsRunFatal exercises cancellation arriving
// after the pre-flight guard has already passed — while a fetch is still
// in flight — rather than before Run is even called. The subscription's
// upstream sleeps longer than the context is given to live, so the fetch
// observes ctx.Err() through http.NewRequestWithContext, and the
// mid-validation re-check must then turn that into a run-fatal error
// before anything reaches Persist.
func TestRun_CancellationMidFetchIsRunFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		w.Write([]byte("ss://YWVzLTI1Ni1nY206cGFzc3dvcmQ=@127.0.0.1:1#test\n"))
	}))
	defer srv.Close()

	log := testLogger(t)
	dir := t.TempDir()
	st, err := store.New(dir, log, nil)
	require.NoError(t, err)
	f := fetch.New(fetch.DefaultConfig(), log)
	v := validate.New(validate.DefaultConfig(), log)
	e := emit.New(emit.NopWriter{}, 20)
	r := New(st, f, v, e, log, 2000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err = r.Run(ctx, []string{srv.URL}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRunCancelled)

	states, err := st.LoadSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)
}
