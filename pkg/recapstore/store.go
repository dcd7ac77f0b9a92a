// Package recapstore defines the persistence boundary for finished-session
// recaps: saving the scored goal/hint/dialogue breakdown and updating the
// learner's lesson-progress record with the resulting recap identifier.
package recapstore

import "context"

// PairRecord is one scored assistant/user exchange in a persisted recap.
type PairRecord struct {
	Assistant        string
	User             string
	Suggestion       string
	AdvancementScore float64
	GrammarScore     float64
	Blended          float64
	Appropriate      bool
}

// GoalRecord is the persisted breakdown for one goal.
type GoalRecord struct {
	Goal     string
	HintUsed bool
	Coins    int
	Overall  float64
	Pairs    []PairRecord
}

// RecapRecord is a complete recap keyed by user and conversation.
type RecapRecord struct {
	UserID            string
	ConversationID    string
	CorrectPercentage float64
	Goals             []GoalRecord
}

// LessonProgressUpdate links a persisted recap into the learner's lesson
// progress.
type LessonProgressUpdate struct {
	UserID         string
	LessonID       string
	ConversationID string
	RecapID        string
	SectionIndex   int
}

// Store is the abstraction over the recap persistence backend.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveRecap persists rec and returns the backend-assigned recap ID.
	SaveRecap(ctx context.Context, rec RecapRecord) (string, error)

	// UpdateLessonProgress records that the learner completed the
	// conversation section, linking the recap ID into their progress.
	UpdateLessonProgress(ctx context.Context, p LessonProgressUpdate) error
}
