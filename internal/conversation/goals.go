package conversation

import "sync"

// GoalEntry tracks one learning objective of the conversation script.
type GoalEntry struct {
	// Text is the learning goal as given to the analysis collaborators.
	Text string

	// HintUsed is true once the learner revealed the hint for this goal.
	// A hinted goal contributes no scored dialogue pairs to the recap.
	HintUsed bool

	// LastTurnIndex is the transcript index of the last assistant turn
	// produced while this goal was active — the boundary with the next goal.
	// -1 while the goal is still open.
	LastTurnIndex int
}

// GoalTracker holds the ordered learning goals of a session and which one is
// active. Goals complete strictly in sequence, so LastTurnIndex values are
// non-decreasing across ascending goal index.
//
// Mutating operations require the tracker to be populated; they return
// [ErrUninitializedSession] otherwise.
type GoalTracker struct {
	mu     sync.RWMutex
	goals  []GoalEntry
	active int
}

// NewGoalTracker returns an unpopulated tracker.
func NewGoalTracker() *GoalTracker {
	return &GoalTracker{}
}

// Populate installs the goal list in script order. It is called exactly once
// per session, at initialization; the number of goals never changes afterwards.
func (g *GoalTracker) Populate(texts []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.goals = make([]GoalEntry, len(texts))
	for i, t := range texts {
		g.goals[i] = GoalEntry{Text: t, LastTurnIndex: -1}
	}
	g.active = 0
}

// Advance stamps lastTurnIndex on the currently active goal and moves the
// active index forward. lastTurnIndex is the index of the assistant turn that
// closed the goal, i.e. transcript length - 1 at the time of the check.
func (g *GoalTracker) Advance(lastTurnIndex int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.goals) == 0 {
		return ErrUninitializedSession
	}
	if g.active >= len(g.goals) {
		return nil // already complete; nothing to advance
	}
	g.goals[g.active].LastTurnIndex = lastTurnIndex
	g.active++
	return nil
}

// RevealHint marks the active goal's hint as used.
func (g *GoalTracker) RevealHint() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.goals) == 0 {
		return ErrUninitializedSession
	}
	if g.active >= len(g.goals) {
		return ErrNoActiveGoal
	}
	g.goals[g.active].HintUsed = true
	return nil
}

// AllComplete reports whether every goal has been advanced past.
func (g *GoalTracker) AllComplete() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.goals) > 0 && g.active >= len(g.goals)
}

// ActiveIndex returns the index of the currently active goal. When all goals
// are complete the index equals the goal count.
func (g *GoalTracker) ActiveIndex() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active
}

// ActiveGoal returns the currently active goal entry.
func (g *GoalTracker) ActiveGoal() (GoalEntry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.goals) == 0 {
		return GoalEntry{}, ErrUninitializedSession
	}
	if g.active >= len(g.goals) {
		return GoalEntry{}, ErrNoActiveGoal
	}
	return g.goals[g.active], nil
}

// Goals returns a copy of all goal entries in script order.
func (g *GoalTracker) Goals() []GoalEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cp := make([]GoalEntry, len(g.goals))
	copy(cp, g.goals)
	return cp
}

// Count returns the number of goals.
func (g *GoalTracker) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.goals)
}

// reset clears the goal list. Called only via [Session.Reset].
func (g *GoalTracker) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.goals = nil
	g.active = 0
}
