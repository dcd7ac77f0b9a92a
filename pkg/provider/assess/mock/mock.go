// Package mock provides test doubles for the assess interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/Bualoitech/learnliko/pkg/provider/assess"
)

// CheckCall records a single invocation of CheckProgress.
type CheckCall struct {
	Rendering string
	GoalText  string
}

// ProgressChecker is a mock implementation of assess.ProgressChecker.
//
// Verdicts are consumed in order, one per call; when the list is exhausted
// the last entry is repeated. An empty list means "false".
type ProgressChecker struct {
	mu sync.Mutex

	// Verdicts is the sequence returned by successive CheckProgress calls.
	Verdicts []bool

	// Err, if non-nil, is returned by every call.
	Err error

	// Calls records every invocation in order.
	Calls []CheckCall
}

var _ assess.ProgressChecker = (*ProgressChecker)(nil)

// CheckProgress implements assess.ProgressChecker.
func (p *ProgressChecker) CheckProgress(_ context.Context, rendering, goalText string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, CheckCall{Rendering: rendering, GoalText: goalText})
	if p.Err != nil {
		return false, p.Err
	}
	if len(p.Verdicts) == 0 {
		return false, nil
	}
	idx := len(p.Calls) - 1
	if idx >= len(p.Verdicts) {
		idx = len(p.Verdicts) - 1
	}
	return p.Verdicts[idx], nil
}

// ScoreCall records a single invocation of ScoreGoal.
type ScoreCall struct {
	Req assess.ScoreRequest
}

// GoalScorer is a mock implementation of assess.GoalScorer.
//
// Scores are keyed by mission text so that concurrent fan-out calls receive
// deterministic results regardless of scheduling order.
type GoalScorer struct {
	mu sync.Mutex

	// Scores maps mission text to the score returned for it. A missing key
	// yields a zero GoalScore with one zero PairScore per submitted pair.
	Scores map[string]*assess.GoalScore

	// Err, if non-nil, is returned by every call.
	Err error

	// Calls records every invocation in order of arrival.
	Calls []ScoreCall
}

var _ assess.GoalScorer = (*GoalScorer)(nil)

// ScoreGoal implements assess.GoalScorer.
func (g *GoalScorer) ScoreGoal(_ context.Context, req assess.ScoreRequest) (*assess.GoalScore, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, ScoreCall{Req: req})
	if g.Err != nil {
		return nil, g.Err
	}
	if s, ok := g.Scores[req.Mission]; ok {
		return s, nil
	}
	return &assess.GoalScore{Pairs: make([]assess.PairScore, len(req.Pairs))}, nil
}

// CallCount returns the number of ScoreGoal invocations so far.
func (g *GoalScorer) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}
