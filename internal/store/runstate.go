package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const runStateFileName = "run_state.json"

type runStateFile struct {
	RunNumber int `json:"run_number"`
}

// NextRunNumber reads the last persisted global run counter, increments it,
// persists the new value, and returns it. The Selector's "rarely" tier
// cadence is keyed off this global counter (run_number/7), not a
// per-subscription one, per the resolved Open Question.
func (s *Store) NextRunNumber(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	current, err := s.loadRunNumber()
	if err != nil {
		return 0, err
	}
	next := current + 1

	data, err := json.Marshal(runStateFile{RunNumber: next})
	if err != nil {
		return 0, fmt.Errorf("store: marshal run state: %w", err)
	}
	if err := s.writeAtomic(runStateFileName, data); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) loadRunNumber() (int, error) {
	data, err := os.ReadFile(s.path(runStateFileName))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		s.log.Errorw("store: failed to read run state file", "error", err)
		return 0, nil
	}
	var file runStateFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.log.Errorw("store: run state file corrupt, resetting counter", "error", err)
		return 0, nil
	}
	return file.RunNumber, nil
}
