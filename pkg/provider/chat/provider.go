// Package chat defines the Provider interface for chat-completion backends.
//
// A chat provider wraps a remote or local LLM API (e.g., OpenAI GPT-4o,
// Anthropic Claude, or a local Ollama instance) and exposes the single
// operation the dialogue engine needs: send an ordered conversation history,
// receive the raw text of the assistant's next message. Structured-output
// parsing, retries, and corrective prompting are the caller's concern —
// the provider returns whatever text the model produced.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package chat

import "context"

// Roles used in a conversation history. These match the wire-level roles of
// every supported backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a chat-completion history. Content-only: the
// dialogue engine keeps audio and display concerns out of the completion
// history it sends to the model.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser], or [RoleAssistant].
	Role string

	// Content is the text content of the message.
	Content string
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends the ordered history to the model and returns the raw text
	// of the generated reply. The last message typically carries the user's
	// newest utterance (or a corrective instruction).
	//
	// Returns an error if the request fails or ctx is cancelled before the
	// completion arrives. An empty history is invalid.
	Complete(ctx context.Context, history []Message) (string, error)
}
