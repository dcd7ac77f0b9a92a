// Package assess defines the capability interfaces for conversation analysis:
// the goal-progress check that drives goal advancement during a conversation,
// and the goal scoring that produces the recap rubric after it ends.
//
// The rubric semantics (what "advancement" or "grammar" mean, how coins are
// granted) belong to the external analyzer; this package only fixes the shape
// of its output.
package assess

import "context"

// DialoguePair is one assistant/user exchange submitted for scoring.
type DialoguePair struct {
	// Assistant is the bot's utterance that opened the exchange.
	Assistant string

	// User is the learner's reply.
	User string
}

// SubScore is one rubric dimension of a scored pair.
type SubScore struct {
	// Score is in [0, 100].
	Score float64 `json:"score"`

	// Examples are improvement examples the analyzer suggests for this
	// dimension. Shown to the learner only when Score is below the
	// suggestion threshold.
	Examples []string `json:"examples"`
}

// PairScore is the analyzer's verdict on one dialogue pair.
type PairScore struct {
	// Advancement measures how much the reply moved the goal forward.
	Advancement SubScore `json:"advancement"`

	// Grammar measures grammatical quality.
	Grammar SubScore `json:"grammar"`

	// Appropriate reports whether the reply fit the conversational context.
	Appropriate bool `json:"appropriateness"`
}

// GoalScore is the analyzer's verdict on one goal-scoped dialogue segment.
type GoalScore struct {
	// Overall is the goal-level score in [0, 100], taken as-is into the
	// recap average (never recomputed from pairs).
	Overall float64 `json:"overall"`

	// Coins is the coin reward for this goal.
	Coins int `json:"coins"`

	// Pairs holds one verdict per submitted dialogue pair, in order.
	Pairs []PairScore `json:"scores"`
}

// ScoreRequest carries one goal segment to the scoring collaborator.
type ScoreRequest struct {
	// HintUsed is true when the learner revealed this goal's hint. Hinted
	// goals are submitted with an empty Pairs slice.
	HintUsed bool

	// Level is the learner's target CEFR level.
	Level string

	// Mission is the goal text the segment was supposed to accomplish.
	Mission string

	// Pairs is the ordered assistant/user exchanges of the segment.
	Pairs []DialoguePair
}

// ProgressChecker decides whether the active goal has been accomplished.
type ProgressChecker interface {
	// CheckProgress inspects the flattened transcript rendering and reports
	// whether goalText has been achieved by the dialogue so far.
	CheckProgress(ctx context.Context, transcriptRendering string, goalText string) (bool, error)
}

// GoalScorer scores one goal-scoped dialogue segment.
type GoalScorer interface {
	// ScoreGoal returns the analyzer's rubric output for the segment. The
	// returned GoalScore must contain exactly one PairScore per submitted
	// pair.
	ScoreGoal(ctx context.Context, req ScoreRequest) (*GoalScore, error)
}
