// Package mock provides a test double for the recapstore.Store interface.
package mock

import (
	"context"
	"sync"

	"github.com/Bualoitech/learnliko/pkg/recapstore"
)

// Store is a mock implementation of recapstore.Store recording every call.
type Store struct {
	mu sync.Mutex

	// RecapID is returned by SaveRecap. Defaults to "recap-1" when empty.
	RecapID string

	// SaveErr, if non-nil, is returned by SaveRecap.
	SaveErr error

	// ProgressErr, if non-nil, is returned by UpdateLessonProgress.
	ProgressErr error

	// Saved records every RecapRecord passed to SaveRecap.
	Saved []recapstore.RecapRecord

	// ProgressUpdates records every LessonProgressUpdate.
	ProgressUpdates []recapstore.LessonProgressUpdate
}

var _ recapstore.Store = (*Store)(nil)

// SaveRecap implements recapstore.Store.
func (s *Store) SaveRecap(_ context.Context, rec recapstore.RecapRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saved = append(s.Saved, rec)
	if s.SaveErr != nil {
		return "", s.SaveErr
	}
	if s.RecapID == "" {
		return "recap-1", nil
	}
	return s.RecapID, nil
}

// UpdateLessonProgress implements recapstore.Store.
func (s *Store) UpdateLessonProgress(_ context.Context, p recapstore.LessonProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProgressUpdates = append(s.ProgressUpdates, p)
	return s.ProgressErr
}

// SavedCount returns the number of SaveRecap invocations so far.
func (s *Store) SavedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Saved)
}
