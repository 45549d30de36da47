package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxypulse/internal/logging"
)

func testLogger(t *testing.T) logging.Interface {
	t.Helper()
	require.NoError(t, logging.Init(logging.Config{Level: "error", Format: "json", OutputPath: "stdout"}))
	return logging.NewLogger()
}

func TestFetchAll_PreservesOrderAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body:" + r.URL.Path))
	}))
	defer srv.Close()

	f := New(DefaultConfig(), testLogger(t))
	results := f.FetchAll(context.Background(), []string{srv.URL + "/a", srv.URL + "/b"})

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, "body:/a", string(results[0].Body))
	assert.Equal(t, "body:/b", string(results[1].Body))
}

func TestFetchAll_RecordsFailureOnNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(DefaultConfig(), testLogger(t))
	results := f.FetchAll(context.Background(), []string{srv.URL})
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFailure, results[0].Outcome)
	assert.NotEmpty(t, results[0].ErrReason)
}

func TestFetchAll_DedupsConcurrentSameURL(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(DefaultConfig(), testLogger(t))
	results := f.FetchAll(context.Background(), []string{srv.URL, srv.URL, srv.URL})
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, OutcomeSuccess, r.Outcome)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestFetchAll_ConcurrencyBound(t *testing.T) {
	var inFlight, maxInFlight int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt64(&maxInFlight, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Concurrency = 2
	f := New(cfg, testLogger(t))

	urls := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		urls = append(urls, srv.URL+"/"+string(rune('a'+i)))
	}
	f.FetchAll(context.Background(), urls)
	assert.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(2))
}
