package conversation_test

import (
	"errors"
	"testing"

	"github.com/Bualoitech/learnliko/internal/conversation"
)

func TestGoalTracker_AdvanceWalksGoalsInOrder(t *testing.T) {
	t.Parallel()

	g := conversation.NewGoalTracker()
	g.Populate([]string{"order a coffee", "ask for the bill"})

	if g.ActiveIndex() != 0 {
		t.Fatalf("ActiveIndex()=%d after Populate, want 0", g.ActiveIndex())
	}
	if g.AllComplete() {
		t.Fatal("AllComplete()=true before any advance")
	}

	if err := g.Advance(2); err != nil {
		t.Fatalf("Advance(2): unexpected error: %v", err)
	}
	if g.ActiveIndex() != 1 {
		t.Errorf("ActiveIndex()=%d after first advance, want 1", g.ActiveIndex())
	}

	if err := g.Advance(4); err != nil {
		t.Fatalf("Advance(4): unexpected error: %v", err)
	}
	if !g.AllComplete() {
		t.Error("AllComplete()=false after advancing past every goal")
	}

	goals := g.Goals()
	if goals[0].LastTurnIndex != 2 || goals[1].LastTurnIndex != 4 {
		t.Errorf("boundaries=[%d %d], want [2 4]", goals[0].LastTurnIndex, goals[1].LastTurnIndex)
	}
}

func TestGoalTracker_OpenGoalHasSentinelBoundary(t *testing.T) {
	t.Parallel()

	g := conversation.NewGoalTracker()
	g.Populate([]string{"introduce yourself"})

	if got := g.Goals()[0].LastTurnIndex; got != -1 {
		t.Errorf("open goal LastTurnIndex=%d, want -1", got)
	}
}

func TestGoalTracker_RevealHintMarksActiveGoalOnly(t *testing.T) {
	t.Parallel()

	g := conversation.NewGoalTracker()
	g.Populate([]string{"order a coffee", "ask for the bill"})

	if err := g.RevealHint(); err != nil {
		t.Fatalf("RevealHint: unexpected error: %v", err)
	}

	goals := g.Goals()
	if !goals[0].HintUsed {
		t.Error("goal 0 HintUsed=false after RevealHint")
	}
	if goals[1].HintUsed {
		t.Error("goal 1 HintUsed=true, hint must only mark the active goal")
	}
}

func TestGoalTracker_RevealHintAfterCompletion(t *testing.T) {
	t.Parallel()

	g := conversation.NewGoalTracker()
	g.Populate([]string{"one goal"})
	if err := g.Advance(1); err != nil {
		t.Fatalf("Advance: unexpected error: %v", err)
	}

	if err := g.RevealHint(); !errors.Is(err, conversation.ErrNoActiveGoal) {
		t.Errorf("RevealHint after completion: err=%v, want ErrNoActiveGoal", err)
	}
}

func TestGoalTracker_UnpopulatedMutationsFail(t *testing.T) {
	t.Parallel()

	g := conversation.NewGoalTracker()

	if err := g.Advance(0); !errors.Is(err, conversation.ErrUninitializedSession) {
		t.Errorf("Advance on empty tracker: err=%v, want ErrUninitializedSession", err)
	}
	if err := g.RevealHint(); !errors.Is(err, conversation.ErrUninitializedSession) {
		t.Errorf("RevealHint on empty tracker: err=%v, want ErrUninitializedSession", err)
	}
	if g.AllComplete() {
		t.Error("AllComplete()=true on empty tracker, want false")
	}
}

func TestGoalTracker_ActiveGoalReturnsCurrentEntry(t *testing.T) {
	t.Parallel()

	g := conversation.NewGoalTracker()
	g.Populate([]string{"first", "second"})

	active, err := g.ActiveGoal()
	if err != nil {
		t.Fatalf("ActiveGoal: unexpected error: %v", err)
	}
	if active.Text != "first" {
		t.Errorf("ActiveGoal().Text=%q, want %q", active.Text, "first")
	}
}
