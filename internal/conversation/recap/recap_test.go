package recap_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Bualoitech/learnliko/internal/conversation"
	"github.com/Bualoitech/learnliko/internal/conversation/feed"
	"github.com/Bualoitech/learnliko/internal/conversation/recap"
	"github.com/Bualoitech/learnliko/pkg/provider/assess"
	assessmock "github.com/Bualoitech/learnliko/pkg/provider/assess/mock"
	recapmock "github.com/Bualoitech/learnliko/pkg/recapstore/mock"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

func strPtr(s string) *string { return &s }

// finishedSession builds a session whose transcript and goal boundaries are
// under test control. texts alternate assistant-first; boundaries holds the
// LastTurnIndex stamped per goal in order.
func finishedSession(t *testing.T, cfg conversation.SessionConfig, texts []string, boundaries []int, hinted ...int) *conversation.Session {
	t.Helper()

	sess := conversation.NewSession(cfg)
	for i, text := range texts {
		role := conversation.RoleAssistant
		if i%2 == 1 {
			role = conversation.RoleUser
		}
		sess.Transcript().Append(conversation.Turn{Role: role, Transcription: strPtr(text)})
	}
	sess.Goals().Populate(cfg.Goals)
	for gi, b := range boundaries {
		for _, h := range hinted {
			if h == gi {
				if err := sess.Goals().RevealHint(); err != nil {
					t.Fatalf("RevealHint(goal %d): %v", gi, err)
				}
			}
		}
		if err := sess.Goals().Advance(b); err != nil {
			t.Fatalf("Advance(%d): %v", b, err)
		}
	}
	sess.Finish(time.Now())
	return sess
}

func newComputer(t *testing.T, scorer *assessmock.GoalScorer, store *recapmock.Store, f *feed.Feed) *recap.Computer {
	t.Helper()
	c, err := recap.NewComputer(recap.ComputerConfig{
		Scorer: scorer,
		Store:  store,
		Feed:   f,
	})
	if err != nil {
		t.Fatalf("NewComputer: unexpected error: %v", err)
	}
	return c
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// ─── window reconstruction ───────────────────────────────────────────────────

func TestCompute_WindowsFollowGoalBoundaries(t *testing.T) {
	t.Parallel()

	// Two goals: goal 0 closed at turn 2, goal 1 at turn 4.
	// Turns: A0 U1 A2 U3 A4.
	sess := finishedSession(t,
		conversation.SessionConfig{Goals: []string{"g0", "g1"}},
		[]string{"Hi!", "Hello.", "What next?", "The bill, please.", "Here you go."},
		[]int{2, 4},
	)
	scorer := &assessmock.GoalScorer{Scores: map[string]*assess.GoalScore{
		"g0": {Overall: 80, Coins: 3, Pairs: make([]assess.PairScore, 1)},
		"g1": {Overall: 60, Coins: 2, Pairs: make([]assess.PairScore, 1)},
	}}
	c := newComputer(t, scorer, &recapmock.Store{}, nil)

	res, err := c.Compute(context.Background(), sess)
	if err != nil {
		t.Fatalf("Compute: unexpected error: %v", err)
	}

	if got := scorer.CallCount(); got != 2 {
		t.Fatalf("scorer calls: %d, want 2 (one per goal)", got)
	}
	// Goal 0's window starts at turn 0: pair (A0, U1). Goal 1's starts at the
	// prior boundary 2: pair (A2, U3); A4 has no learner reply.
	var g0, g1 assess.ScoreRequest
	for _, call := range scorer.Calls {
		switch call.Req.Mission {
		case "g0":
			g0 = call.Req
		case "g1":
			g1 = call.Req
		}
	}
	if len(g0.Pairs) != 1 || g0.Pairs[0].Assistant != "Hi!" || g0.Pairs[0].User != "Hello." {
		t.Errorf("goal 0 pairs=%+v, want [(Hi!, Hello.)]", g0.Pairs)
	}
	if len(g1.Pairs) != 1 || g1.Pairs[0].Assistant != "What next?" || g1.Pairs[0].User != "The bill, please." {
		t.Errorf("goal 1 pairs=%+v, want [(What next?, The bill, please.)]", g1.Pairs)
	}

	if len(res.History) != 2 {
		t.Errorf("flattened history has %d pairs, want 2", len(res.History))
	}
	if res.TotalCoins != 5 {
		t.Errorf("TotalCoins=%d, want 5", res.TotalCoins)
	}
	if !almostEqual(res.OverallScore, 70) {
		t.Errorf("OverallScore=%f, want 70 (mean of 80 and 60)", res.OverallScore)
	}
}

func TestCompute_HintedGoalHasEmptyWindowButCounts(t *testing.T) {
	t.Parallel()

	// Goal 0 hinted, goal 1 scored. The hinted goal contributes no pairs but
	// still divides the overall average.
	sess := finishedSession(t,
		conversation.SessionConfig{Goals: []string{"g0", "g1"}},
		[]string{"Hi!", "Hello.", "What next?", "The bill, please.", "Here you go."},
		[]int{2, 4},
		0, // hint goal 0
	)
	scorer := &assessmock.GoalScorer{Scores: map[string]*assess.GoalScore{
		"g0": {}, // analyzer returns an empty verdict for hinted segments
		"g1": {Overall: 90, Coins: 4, Pairs: make([]assess.PairScore, 1)},
	}}
	c := newComputer(t, scorer, &recapmock.Store{}, nil)

	res, err := c.Compute(context.Background(), sess)
	if err != nil {
		t.Fatalf("Compute: unexpected error: %v", err)
	}

	for _, call := range scorer.Calls {
		if call.Req.Mission == "g0" {
			if !call.Req.HintUsed {
				t.Error("goal 0 submitted without HintUsed")
			}
			if len(call.Req.Pairs) != 0 {
				t.Errorf("hinted goal submitted %d pairs, want 0", len(call.Req.Pairs))
			}
		}
	}
	if len(res.Goals[0].Pairs) != 0 {
		t.Errorf("hinted goal entry has %d pairs, want 0", len(res.Goals[0].Pairs))
	}
	if len(res.History) != 1 {
		t.Errorf("flattened history has %d pairs, want 1", len(res.History))
	}
	// 90 / 2 goals: the hinted goal's zero stays in the denominator.
	if !almostEqual(res.OverallScore, 45) {
		t.Errorf("OverallScore=%f, want 45", res.OverallScore)
	}
}

// ─── blending and suggestions ────────────────────────────────────────────────

func TestCompute_BlendedScoreAndSuggestions(t *testing.T) {
	t.Parallel()

	sess := finishedSession(t,
		conversation.SessionConfig{Goals: []string{"g0"}},
		[]string{"Hi!", "Hello."},
		[]int{1},
	)
	scorer := &assessmock.GoalScorer{Scores: map[string]*assess.GoalScore{
		"g0": {Overall: 75, Coins: 1, Pairs: []assess.PairScore{{
			Advancement: assess.SubScore{Score: 70, Examples: []string{"Try asking a question."}},
			Grammar:     assess.SubScore{Score: 90, Examples: []string{"Watch the article."}},
			Appropriate: true,
		}}},
	}}
	c := newComputer(t, scorer, &recapmock.Store{}, nil)

	res, err := c.Compute(context.Background(), sess)
	if err != nil {
		t.Fatalf("Compute: unexpected error: %v", err)
	}

	pair := res.History[0]
	// 50 + 70×0.3 + 90×0.2 = 89.
	if !almostEqual(pair.Blended, 89) {
		t.Errorf("Blended=%f, want 89", pair.Blended)
	}
	// Advancement (70 < 80) triggers its examples; grammar (90 ≥ 80) stays out.
	if pair.Suggestion != "Try asking a question." {
		t.Errorf("Suggestion=%q, want advancement examples only", pair.Suggestion)
	}
	if !pair.Appropriate {
		t.Error("Appropriate flag lost in assembly")
	}
}

func TestCompute_BothSubScoresLowJoinsSuggestions(t *testing.T) {
	t.Parallel()

	sess := finishedSession(t,
		conversation.SessionConfig{Goals: []string{"g0"}},
		[]string{"Hi!", "Hello."},
		[]int{1},
	)
	scorer := &assessmock.GoalScorer{Scores: map[string]*assess.GoalScore{
		"g0": {Pairs: []assess.PairScore{{
			Advancement: assess.SubScore{Score: 40, Examples: []string{"adv tip"}},
			Grammar:     assess.SubScore{Score: 50, Examples: []string{"grammar tip"}},
		}}},
	}}
	c := newComputer(t, scorer, &recapmock.Store{}, nil)

	res, err := c.Compute(context.Background(), sess)
	if err != nil {
		t.Fatalf("Compute: unexpected error: %v", err)
	}
	if got := res.History[0].Suggestion; got != "adv tip\ngrammar tip" {
		t.Errorf("Suggestion=%q, want both blocks joined by newline", got)
	}
}

func TestCompute_HighSubScoresYieldNoSuggestion(t *testing.T) {
	t.Parallel()

	sess := finishedSession(t,
		conversation.SessionConfig{Goals: []string{"g0"}},
		[]string{"Hi!", "Hello."},
		[]int{1},
	)
	scorer := &assessmock.GoalScorer{Scores: map[string]*assess.GoalScore{
		"g0": {Pairs: []assess.PairScore{{
			Advancement: assess.SubScore{Score: 95, Examples: []string{"unused"}},
			Grammar:     assess.SubScore{Score: 80, Examples: []string{"unused"}},
		}}},
	}}
	c := newComputer(t, scorer, &recapmock.Store{}, nil)

	res, err := c.Compute(context.Background(), sess)
	if err != nil {
		t.Fatalf("Compute: unexpected error: %v", err)
	}
	if got := res.History[0].Suggestion; got != "" {
		t.Errorf("Suggestion=%q, want empty", got)
	}
}

// ─── failure semantics ───────────────────────────────────────────────────────

func TestCompute_MissingUserContextFailsFast(t *testing.T) {
	t.Parallel()

	sess := finishedSession(t,
		conversation.SessionConfig{
			Goals:   []string{"g0"},
			Persist: true,
			// User context left empty.
		},
		[]string{"Hi!", "Hello."},
		[]int{1},
	)
	scorer := &assessmock.GoalScorer{}
	c := newComputer(t, scorer, &recapmock.Store{}, nil)

	_, err := c.Compute(context.Background(), sess)
	if !errors.Is(err, conversation.ErrMissingUserContext) {
		t.Fatalf("Compute: err=%v, want ErrMissingUserContext", err)
	}
	// Fail-fast: the precondition is checked before any scoring call.
	if got := scorer.CallCount(); got != 0 {
		t.Errorf("scorer calls: %d, want 0", got)
	}
}

func TestCompute_SingleScoringFailureFailsWholeRecap(t *testing.T) {
	t.Parallel()

	sess := finishedSession(t,
		conversation.SessionConfig{Goals: []string{"g0", "g1"}},
		[]string{"Hi!", "Hello.", "Next?", "Sure.", "Bye."},
		[]int{2, 4},
	)
	scorer := &assessmock.GoalScorer{Err: errors.New("analyzer down")}
	store := &recapmock.Store{}
	c := newComputer(t, scorer, store, nil)

	_, err := c.Compute(context.Background(), sess)
	if err == nil {
		t.Fatal("Compute: want error when a goal scoring call fails, got nil")
	}
	if !strings.Contains(err.Error(), "analyzer down") {
		t.Errorf("err=%v, want wrapped analyzer failure", err)
	}
	// No partial results: nothing is persisted or published.
	if store.SavedCount() != 0 {
		t.Errorf("recaps persisted despite scoring failure: %d", store.SavedCount())
	}
	if c.Result(sess.ID()) != nil {
		t.Error("partial result published despite scoring failure")
	}
}

// ─── persistence and publication ─────────────────────────────────────────────

func TestCompute_PersistsAndLinksLessonProgress(t *testing.T) {
	t.Parallel()

	sess := finishedSession(t,
		conversation.SessionConfig{
			Goals:   []string{"g0"},
			Persist: true,
			User: conversation.UserContext{
				UserID: "u1", LessonID: "l1", ConversationID: "c1", SectionIndex: 2,
			},
		},
		[]string{"Hi!", "Hello."},
		[]int{1},
	)
	scorer := &assessmock.GoalScorer{Scores: map[string]*assess.GoalScore{
		"g0": {Overall: 88, Coins: 3, Pairs: make([]assess.PairScore, 1)},
	}}
	store := &recapmock.Store{RecapID: "recap-42"}
	c := newComputer(t, scorer, store, nil)

	res, err := c.Compute(context.Background(), sess)
	if err != nil {
		t.Fatalf("Compute: unexpected error: %v", err)
	}

	if store.SavedCount() != 1 {
		t.Fatalf("SaveRecap calls: %d, want 1", store.SavedCount())
	}
	saved := store.Saved[0]
	if saved.UserID != "u1" || saved.ConversationID != "c1" {
		t.Errorf("saved record keys=%q/%q, want u1/c1", saved.UserID, saved.ConversationID)
	}
	if !almostEqual(saved.CorrectPercentage, 88) {
		t.Errorf("CorrectPercentage=%f, want 88", saved.CorrectPercentage)
	}

	if len(store.ProgressUpdates) != 1 {
		t.Fatalf("UpdateLessonProgress calls: %d, want 1", len(store.ProgressUpdates))
	}
	up := store.ProgressUpdates[0]
	if up.RecapID != "recap-42" || up.LessonID != "l1" || up.SectionIndex != 2 {
		t.Errorf("progress update=%+v, want recap-42/l1/2", up)
	}
	if res.RecapID != "recap-42" {
		t.Errorf("Result.RecapID=%q, want recap-42", res.RecapID)
	}
}

func TestCompute_SkipsPersistenceWhenDisabled(t *testing.T) {
	t.Parallel()

	sess := finishedSession(t,
		conversation.SessionConfig{Goals: []string{"g0"}}, // Persist: false
		[]string{"Hi!", "Hello."},
		[]int{1},
	)
	scorer := &assessmock.GoalScorer{Scores: map[string]*assess.GoalScore{
		"g0": {Overall: 70, Pairs: make([]assess.PairScore, 1)},
	}}
	store := &recapmock.Store{}
	c := newComputer(t, scorer, store, nil)

	res, err := c.Compute(context.Background(), sess)
	if err != nil {
		t.Fatalf("Compute: unexpected error: %v", err)
	}
	if store.SavedCount() != 0 {
		t.Errorf("SaveRecap calls: %d, want 0 with Persist=false", store.SavedCount())
	}
	if res.RecapID != "" {
		t.Errorf("RecapID=%q, want empty without persistence", res.RecapID)
	}
}

func TestCompute_PublishesResultAndFeedEvent(t *testing.T) {
	t.Parallel()

	sess := finishedSession(t,
		conversation.SessionConfig{Goals: []string{"g0"}},
		[]string{"Hi!", "Hello."},
		[]int{1},
	)
	scorer := &assessmock.GoalScorer{Scores: map[string]*assess.GoalScore{
		"g0": {Overall: 70, Pairs: make([]assess.PairScore, 1)},
	}}
	f := feed.New()
	events, cancel := f.Subscribe()
	defer cancel()
	c := newComputer(t, scorer, &recapmock.Store{}, f)

	if got := c.Result(sess.ID()); got != nil {
		t.Fatalf("Result() before Compute: %+v, want nil", got)
	}

	res, err := c.Compute(context.Background(), sess)
	if err != nil {
		t.Fatalf("Compute: unexpected error: %v", err)
	}
	if got := c.Result(sess.ID()); got != res {
		t.Error("Result() does not return the published result")
	}

	ev := <-events
	if ev.Kind != feed.KindRecapPublished || ev.SessionID != sess.ID() {
		t.Errorf("event=%+v, want recap_published for session", ev)
	}
}
