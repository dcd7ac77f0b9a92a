package conversation

import (
	"fmt"
	"strings"
	"sync"
)

// TranscriptStore holds the linear turn-by-turn history of a conversation.
//
// Turns are appended in completion order and are never deleted or reordered.
// The engine is the only writer; the read methods may be called concurrently
// by snapshot consumers.
type TranscriptStore struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewTranscriptStore returns an empty store.
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{}
}

// Append adds t to the end of the transcript and returns its index.
func (s *TranscriptStore) Append(t Turn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	return len(s.turns) - 1
}

// ReplaceAt replaces the turn at index i in place, preserving order. It is
// used only to fill in a pending transcription; replacing a turn that is not
// pending is a usage error.
func (s *TranscriptStore) ReplaceAt(i int, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.turns) {
		return fmt.Errorf("conversation: replace at %d: index out of range [0,%d)", i, len(s.turns))
	}
	if !s.turns[i].Pending() {
		return fmt.Errorf("conversation: replace at %d: turn is not pending transcription", i)
	}
	s.turns[i] = t
	return nil
}

// Turns returns a copy of the full ordered turn sequence.
func (s *TranscriptStore) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]Turn, len(s.turns))
	copy(cp, s.turns)
	return cp
}

// Len returns the number of turns.
func (s *TranscriptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Render produces the flattened textual rendering of the transcript used by
// the goal-progress collaborator: one line per turn, "User: …" for learner
// turns and "<botName>: …" for assistant turns. Turns with a pending
// transcription are skipped.
func (s *TranscriptStore) Render(botName string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	for _, t := range s.turns {
		if t.Pending() {
			continue
		}
		if t.Role == RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString(botName)
			b.WriteString(": ")
		}
		b.WriteString(t.Text())
		b.WriteByte('\n')
	}
	return b.String()
}

// reset discards all turns. Called only via [Session.Reset].
func (s *TranscriptStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}
