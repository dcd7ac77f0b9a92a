package conversation

import "errors"

// ErrUninitializedSession is returned when an operation that requires an
// initialized session (populated goals, persona intro produced) runs before
// initialization. This is a programming-usage error and is never retried.
var ErrUninitializedSession = errors.New("conversation: session not initialized")

// ErrNoActiveGoal is returned when a goal mutation runs after every goal has
// already completed.
var ErrNoActiveGoal = errors.New("conversation: no active goal")

// ErrMissingUserContext is returned when recap persistence is requested but
// the session lacks the user or lesson identifiers needed to key the record.
// Callers must treat this as a precondition failure, not a transient error.
var ErrMissingUserContext = errors.New("conversation: missing user context")
