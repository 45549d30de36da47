package scheduler

import (
	"context"
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

type countingJob struct {
	runs int64
}

func (j *countingJob) Execute(ctx context.Context) error {
	atomic.AddInt64(&j.runs, 1)
	return nil
}

func TestSchedulerManager_RunsPipelineJobImmediatelyAndOnInterval(t *testing.T) {
	mgr, err := NewSchedulerManager(testLogger(t))
	require.NoError(t, err)

	job := &countingJob{}
	require.NoError(t, mgr.RegisterPipelineJob(50*time.Millisecond, time.Second, job))

	mgr.Start()
	defer mgr.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&job.runs) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerManager_StartStopIdempotent(t *testing.T) {
	mgr, err := NewSchedulerManager(testLogger(t))
	require.NoError(t, err)

	assert.False(t, mgr.IsStarted())
	mgr.Start()
	mgr.Start()
	assert.True(t, mgr.IsStarted())

	require.NoError(t, mgr.Stop())
	require.NoError(t, mgr.Stop())
	assert.False(t, mgr.IsStarted())
}
