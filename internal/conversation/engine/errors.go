package engine

import (
	"errors"
	"fmt"
)

// ErrAlreadyInitialized is returned when Initialize runs twice on the same
// session without an intervening reset.
var ErrAlreadyInitialized = errors.New("engine: session already initialized")

// ErrSessionFinished is returned when an operation runs after the
// conversation has ended; only Reset is valid then.
var ErrSessionFinished = errors.New("engine: session finished")

// CollaboratorError reports a failed call to an external collaborator (chat
// transport, transcriber, synthesizer, simplifier, progress checker). It is
// an upstream failure, not a session-state violation.
type CollaboratorError struct {
	// Collaborator names the failing dependency.
	Collaborator string

	// Err is the underlying call error.
	Err error
}

// Error implements the error interface.
func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("engine: %s: %v", e.Collaborator, e.Err)
}

// Unwrap returns the underlying call error.
func (e *CollaboratorError) Unwrap() error { return e.Err }

// BotReplyFailedError reports that the chat-completion reply could not be
// parsed into the required scheme after every allowed attempt. The
// conversation is left awaiting a bot reply until reset; no turn has been
// appended.
type BotReplyFailedError struct {
	// Attempts is the total number of completion attempts made.
	Attempts int

	// LastErr is the parse error from the final attempt.
	LastErr error
}

// Error implements the error interface.
func (e *BotReplyFailedError) Error() string {
	return fmt.Sprintf("engine: bot reply failed after %d attempts: %v", e.Attempts, e.LastErr)
}

// Unwrap returns the final parse error.
func (e *BotReplyFailedError) Unwrap() error { return e.LastErr }
