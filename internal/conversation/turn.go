// Package conversation holds the session aggregate for one learner/bot
// conversation: the ordered turn transcript, the learning-goal tracker, the
// content-only completion history, and the policy flags that drive the
// dialogue engine.
//
// A Session is exclusively owned by one dialogue engine; the engine serialises
// all top-level operations, so the stores in this package only need light
// read-locking to support concurrent snapshot readers (HTTP handlers, the
// recap computer).
package conversation

import "time"

// Role identifies the speaker of a [Turn].
type Role string

const (
	// RoleAssistant marks a turn spoken by the bot persona.
	RoleAssistant Role = "assistant"

	// RoleUser marks a turn spoken by the learner.
	RoleUser Role = "user"
)

// Turn is one utterance in the conversation.
//
// A turn is appended exactly once and never removed or reordered. The only
// permitted mutation is filling in a user turn's pending transcription via
// [TranscriptStore.ReplaceAt] once asynchronous transcription completes;
// assistant turns are created with their transcription known.
type Turn struct {
	// Role is the speaker of this turn.
	Role Role

	// AudioRef is an opaque handle to the recorded or synthesised audio — a
	// URL or an encoded blob reference. Empty when no audio exists.
	AudioRef string

	// Transcription is the text content. Nil while transcription of a user
	// recording is still pending.
	Transcription *string

	// CreatedAt is when the turn was appended.
	CreatedAt time.Time
}

// Text returns the transcription, or "" while it is pending.
func (t Turn) Text() string {
	if t.Transcription == nil {
		return ""
	}
	return *t.Transcription
}

// Pending reports whether this turn is still awaiting its transcription.
func (t Turn) Pending() bool { return t.Transcription == nil }
