package llm_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Bualoitech/learnliko/pkg/provider/assess"
	"github.com/Bualoitech/learnliko/pkg/provider/assess/llm"
	chatmock "github.com/Bualoitech/learnliko/pkg/provider/chat/mock"
)

func TestCheckProgress_Verdicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   string
		want    bool
		wantErr bool
	}{
		{name: "yes", reply: "yes", want: true},
		{name: "no", reply: "no", want: false},
		{name: "capitalised with period", reply: "Yes.", want: true},
		{name: "quoted", reply: `"no"`, want: false},
		{name: "prose", reply: "the learner did well", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &chatmock.Provider{Replies: []string{tt.reply}}
			a := llm.New(p)

			got, err := a.CheckProgress(context.Background(), "Mia: Hi!\nUser: Hello.", "greet the barista")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CheckProgress(%q): want error, got %v", tt.reply, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckProgress(%q): unexpected error: %v", tt.reply, err)
			}
			if got != tt.want {
				t.Errorf("CheckProgress(%q)=%v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestCheckProgress_SendsGoalAndTranscript(t *testing.T) {
	t.Parallel()

	p := &chatmock.Provider{Replies: []string{"no"}}
	a := llm.New(p)

	if _, err := a.CheckProgress(context.Background(), "Mia: Hi!", "order a coffee"); err != nil {
		t.Fatalf("CheckProgress: unexpected error: %v", err)
	}

	history := p.Calls[0].History
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
	user := history[1].Content
	if !strings.Contains(user, "order a coffee") || !strings.Contains(user, "Mia: Hi!") {
		t.Errorf("user message missing goal or transcript:\n%s", user)
	}
}

func TestScoreGoal_HintedSegmentSkipsModel(t *testing.T) {
	t.Parallel()

	p := &chatmock.Provider{}
	a := llm.New(p)

	got, err := a.ScoreGoal(context.Background(), assess.ScoreRequest{
		HintUsed: true,
		Mission:  "order a coffee",
		Pairs:    []assess.DialoguePair{{Assistant: "Hi", User: "Hello"}},
	})
	if err != nil {
		t.Fatalf("ScoreGoal: unexpected error: %v", err)
	}
	if got.Overall != 0 || got.Coins != 0 || len(got.Pairs) != 0 {
		t.Errorf("hinted segment scored %+v, want zero verdict", got)
	}
	if p.CallCount() != 0 {
		t.Errorf("chat calls for hinted segment: %d, want 0", p.CallCount())
	}
}

func TestScoreGoal_DecodesStrictJSON(t *testing.T) {
	t.Parallel()

	const reply = `{"overall": 85, "coins": 4, "scores": [{"advancement": {"score": 90, "examples": []}, "grammar": {"score": 70, "examples": ["Mind the article."]}, "appropriateness": true}]}`
	p := &chatmock.Provider{Replies: []string{reply}}
	a := llm.New(p)

	got, err := a.ScoreGoal(context.Background(), assess.ScoreRequest{
		Level:   "A2",
		Mission: "order a coffee",
		Pairs:   []assess.DialoguePair{{Assistant: "What would you like?", User: "A coffee, please."}},
	})
	if err != nil {
		t.Fatalf("ScoreGoal: unexpected error: %v", err)
	}
	if got.Overall != 85 || got.Coins != 4 {
		t.Errorf("overall=%f coins=%d, want 85/4", got.Overall, got.Coins)
	}
	if len(got.Pairs) != 1 || got.Pairs[0].Grammar.Score != 70 {
		t.Errorf("pairs=%+v, want one pair with grammar 70", got.Pairs)
	}
	if !got.Pairs[0].Appropriate {
		t.Error("appropriateness lost in decoding")
	}
}

func TestScoreGoal_FencedJSONAccepted(t *testing.T) {
	t.Parallel()

	const reply = "```json\n{\"overall\": 60, \"coins\": 1, \"scores\": [{\"advancement\": {\"score\": 50, \"examples\": []}, \"grammar\": {\"score\": 50, \"examples\": []}, \"appropriateness\": false}]}\n```"
	p := &chatmock.Provider{Replies: []string{reply}}
	a := llm.New(p)

	got, err := a.ScoreGoal(context.Background(), assess.ScoreRequest{
		Mission: "m",
		Pairs:   []assess.DialoguePair{{Assistant: "a", User: "u"}},
	})
	if err != nil {
		t.Fatalf("ScoreGoal: unexpected error: %v", err)
	}
	if got.Overall != 60 {
		t.Errorf("overall=%f, want 60", got.Overall)
	}
}

func TestScoreGoal_RejectsMismatchedPairCount(t *testing.T) {
	t.Parallel()

	// One pair submitted, two verdicts returned.
	const reply = `{"overall": 60, "coins": 1, "scores": [{"advancement": {"score": 50, "examples": []}, "grammar": {"score": 50, "examples": []}, "appropriateness": true}, {"advancement": {"score": 10, "examples": []}, "grammar": {"score": 10, "examples": []}, "appropriateness": true}]}`
	p := &chatmock.Provider{Replies: []string{reply}}
	a := llm.New(p)

	_, err := a.ScoreGoal(context.Background(), assess.ScoreRequest{
		Mission: "m",
		Pairs:   []assess.DialoguePair{{Assistant: "a", User: "u"}},
	})
	if err == nil {
		t.Fatal("ScoreGoal with mismatched pair count: want error, got nil")
	}
}

func TestScoreGoal_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	const reply = `{"overall": 60, "coins": 1, "scores": [], "confidence": 0.9}`
	p := &chatmock.Provider{Replies: []string{reply}}
	a := llm.New(p)

	_, err := a.ScoreGoal(context.Background(), assess.ScoreRequest{
		Mission: "m",
		Pairs:   []assess.DialoguePair{{Assistant: "a", User: "u"}},
	})
	if err == nil {
		t.Fatal("ScoreGoal with unknown field: want error, got nil")
	}
}
