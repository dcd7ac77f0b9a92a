// Package llm implements the assess interfaces on top of a chat-completion
// provider, asking the model for strict JSON and decoding it with unknown
// fields disallowed.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Bualoitech/learnliko/pkg/provider/assess"
	"github.com/Bualoitech/learnliko/pkg/provider/chat"
)

// Compile-time checks against the capability interfaces.
var (
	_ assess.ProgressChecker = (*Analyzer)(nil)
	_ assess.GoalScorer      = (*Analyzer)(nil)
)

const progressPrompt = "You judge whether a language learner accomplished a conversation goal. " +
	"Given the conversation so far and the goal, reply with exactly one word: " +
	`"yes" if the learner has accomplished the goal, "no" otherwise.`

const scorePrompt = "You score a language learner's dialogue segment against a mission. " +
	"For each assistant/user pair, rate advancement (how much the reply progressed the mission) " +
	"and grammar, each 0-100 with up to three improvement examples, and whether the reply was " +
	"appropriate. Also give a goal-level overall score 0-100 and a coin reward 0-50. " +
	`Reply with JSON only, matching: {"overall": number, "coins": number, "scores": ` +
	`[{"advancement": {"score": number, "examples": [string]}, "grammar": {"score": number, ` +
	`"examples": [string]}, "appropriateness": boolean}]}`

// Analyzer implements assess.ProgressChecker and assess.GoalScorer using a
// chat model as the analysis backend.
type Analyzer struct {
	provider chat.Provider
}

// New creates an Analyzer backed by provider.
func New(provider chat.Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// CheckProgress implements [assess.ProgressChecker].
func (a *Analyzer) CheckProgress(ctx context.Context, transcriptRendering string, goalText string) (bool, error) {
	out, err := a.provider.Complete(ctx, []chat.Message{
		{Role: chat.RoleSystem, Content: progressPrompt},
		{Role: chat.RoleUser, Content: "Goal: " + goalText + "\n\nConversation:\n" + transcriptRendering},
	})
	if err != nil {
		return false, fmt.Errorf("assess: check progress: %w", err)
	}

	switch strings.ToLower(strings.Trim(strings.TrimSpace(out), `."'`)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("assess: check progress: unexpected verdict %q", out)
	}
}

// ScoreGoal implements [assess.GoalScorer].
//
// A hinted goal (empty pair list) is not sent to the model at all: the
// segment is excluded from analysis and scores zero, while still occupying
// its slot in the recap average.
func (a *Analyzer) ScoreGoal(ctx context.Context, req assess.ScoreRequest) (*assess.GoalScore, error) {
	if req.HintUsed || len(req.Pairs) == 0 {
		return &assess.GoalScore{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Learner level: %s\nMission: %s\n\n", req.Level, req.Mission)
	for i, p := range req.Pairs {
		fmt.Fprintf(&b, "Pair %d:\nAssistant: %s\nUser: %s\n", i+1, p.Assistant, p.User)
	}

	out, err := a.provider.Complete(ctx, []chat.Message{
		{Role: chat.RoleSystem, Content: scorePrompt},
		{Role: chat.RoleUser, Content: b.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("assess: score goal: %w", err)
	}

	score, err := decodeGoalScore(out)
	if err != nil {
		return nil, fmt.Errorf("assess: score goal: %w", err)
	}
	if len(score.Pairs) != len(req.Pairs) {
		return nil, fmt.Errorf("assess: score goal: analyzer returned %d pair scores for %d pairs",
			len(score.Pairs), len(req.Pairs))
	}
	return score, nil
}

// decodeGoalScore parses the model's JSON reply strictly. Models sometimes
// wrap JSON in a Markdown fence; that wrapper is stripped before decoding.
func decodeGoalScore(raw string) (*assess.GoalScore, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var score assess.GoalScore
	if err := dec.Decode(&score); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &score, nil
}
