// Package simplify defines the text-simplification capability interface and a
// chat-backed implementation.
//
// The dialogue engine passes every generated bot message through a simplifier
// parameterised by the learner's target CEFR level, so an A1 learner never
// sees a B2 sentence.
package simplify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Bualoitech/learnliko/pkg/provider/chat"
)

// Simplifier rewrites text for a target proficiency level.
type Simplifier interface {
	// Simplify returns text rewritten for targetLevel (a CEFR level such as
	// "A1"). Implementations should preserve meaning and return the input
	// unchanged when it already fits the level.
	Simplify(ctx context.Context, text string, targetLevel string) (string, error)
}

// systemPrompt instructs the model to act as a CEFR-aware rewriter.
const systemPrompt = "You simplify English text to a target CEFR level. " +
	"Rewrite the given text using only vocabulary and grammar appropriate for the level. " +
	"Preserve the meaning and tone. Reply with the rewritten text only, no commentary."

// ChatSimplifier implements [Simplifier] on top of a chat-completion provider.
type ChatSimplifier struct {
	provider chat.Provider
}

var _ Simplifier = (*ChatSimplifier)(nil)

// NewChat creates a ChatSimplifier backed by provider.
func NewChat(provider chat.Provider) *ChatSimplifier {
	return &ChatSimplifier{provider: provider}
}

// Simplify implements [Simplifier].
func (s *ChatSimplifier) Simplify(ctx context.Context, text string, targetLevel string) (string, error) {
	if text == "" {
		return "", nil
	}

	out, err := s.provider.Complete(ctx, []chat.Message{
		{Role: chat.RoleSystem, Content: systemPrompt},
		{Role: chat.RoleUser, Content: fmt.Sprintf("Target level: %s\n\n%s", targetLevel, text)},
	})
	if err != nil {
		return "", fmt.Errorf("simplify: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		// An empty rewrite would erase the bot's reply; keep the original.
		return text, nil
	}
	return out, nil
}

// Passthrough is a [Simplifier] that returns text unchanged. Useful in tests
// and for deployments that disable simplification.
type Passthrough struct{}

var _ Simplifier = Passthrough{}

// Simplify implements [Simplifier].
func (Passthrough) Simplify(_ context.Context, text string, _ string) (string, error) {
	return text, nil
}
