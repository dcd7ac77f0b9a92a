package engine

import "errors"

// stop wraps an error to abort a retry loop immediately. The wrapped error
// is returned to the caller unmodified.
type stop struct{ error }

func (s stop) Unwrap() error { return s.error }

// retry runs op up to maxAttempts times, returning the first successful
// result. After each failed attempt except the last, onFailure is invoked
// with the attempt number and error, giving the caller a chance to adjust
// state (e.g. append a corrective instruction) before the next attempt.
// An op error wrapped in [stop] aborts the loop at once.
func retry[T any](maxAttempts int, op func(attempt int) (T, error), onFailure func(attempt int, err error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := op(attempt)
		if err == nil {
			return v, nil
		}
		var s stop
		if errors.As(err, &s) {
			return zero, s.error
		}
		lastErr = err
		if attempt < maxAttempts && onFailure != nil {
			onFailure(attempt, err)
		}
	}
	return zero, lastErr
}
