// Package mock provides a test double for the chat.Provider interface.
//
// Use Provider in unit tests to verify that the dialogue engine sends correct
// histories and to feed controlled replies without a live LLM backend.
//
// Example:
//
//	p := &mock.Provider{Replies: []string{`{"message":"Hi!","emotion":"happy"}`}}
//	text, err := p.Complete(ctx, history)
package mock

import (
	"context"
	"sync"

	"github.com/Bualoitech/learnliko/pkg/provider/chat"
)

// Call records a single invocation of Complete.
type Call struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// History is the message history passed to Complete. It is a copy, safe to
	// inspect after the call returns.
	History []chat.Message
}

// Provider is a mock implementation of chat.Provider.
//
// Replies are consumed in order, one per Complete call; when the list is
// exhausted the last entry is repeated. Set Err to inject an error on every
// call.
type Provider struct {
	mu sync.Mutex

	// Replies is the sequence of raw texts returned by successive Complete calls.
	Replies []string

	// Err, if non-nil, is returned by every Complete call.
	Err error

	// Calls records every invocation of Complete in order.
	Calls []Call
}

var _ chat.Provider = (*Provider)(nil)

// Complete implements chat.Provider.
func (p *Provider) Complete(ctx context.Context, history []chat.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make([]chat.Message, len(history))
	copy(cp, history)
	p.Calls = append(p.Calls, Call{Ctx: ctx, History: cp})

	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Replies) == 0 {
		return "", nil
	}
	idx := len(p.Calls) - 1
	if idx >= len(p.Replies) {
		idx = len(p.Replies) - 1
	}
	return p.Replies[idx], nil
}

// CallCount returns the number of Complete invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
