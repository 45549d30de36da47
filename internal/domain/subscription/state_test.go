package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesDisplayNameAndProtection(t *testing.T) {
	s, err := New("https://sub.example.com/abc", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "sub.example.com", s.DisplayName())
	assert.Equal(t, ProtectionCounterInitial, s.ProtectionCounter())
	assert.Equal(t, TierSuspended, s.FrequencyTier())
}

func TestNew_RejectsEmptyURL(t *testing.T) {
	_, err := New("", time.Now())
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestDecrementProtection_FloorsAtZero(t *testing.T) {
	s, err := New("https://example.com", time.Now())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		s = s.DecrementProtection()
	}
	assert.Equal(t, 0, s.ProtectionCounter())
}

func TestRecordRun_TrimsHistoryToCap(t *testing.T) {
	s, err := New("https://example.com", time.Now())
	require.NoError(t, err)
	for i := 0; i < MaxHistory+5; i++ {
		s = s.RecordRun(HistoryEntry{Timestamp: time.Now(), TotalNodesParsed: 1, ValidNodes: 1, FetchOutcome: FetchSucceeded})
	}
	assert.Len(t, s.History(), MaxHistory)
	assert.Equal(t, MaxHistory+5, s.RunsUsed())
}

func TestApplyScore_SetsTier(t *testing.T) {
	s, err := New("https://example.com", time.Now())
	require.NoError(t, err)
	s = s.ApplyScore(86)
	assert.Equal(t, 86, s.CurrentScore())
	assert.Equal(t, TierOften, s.FrequencyTier())
}
