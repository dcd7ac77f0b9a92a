package engine

import (
	"errors"
	"testing"
)

func TestRetry_SucceedsWithoutCallback(t *testing.T) {
	t.Parallel()

	calls, failures := 0, 0
	got, err := retry(3,
		func(int) (string, error) {
			calls++
			return "ok", nil
		},
		func(int, error) { failures++ })
	if err != nil {
		t.Fatalf("retry: unexpected error: %v", err)
	}
	if got != "ok" || calls != 1 || failures != 0 {
		t.Errorf("got=%q calls=%d failures=%d, want ok/1/0", got, calls, failures)
	}
}

func TestRetry_CallbackRunsBetweenAttemptsOnly(t *testing.T) {
	t.Parallel()

	calls, failures := 0, 0
	_, err := retry(4,
		func(int) (string, error) {
			calls++
			return "", errors.New("bad parse")
		},
		func(int, error) { failures++ })
	if err == nil {
		t.Fatal("retry: want error after exhaustion, got nil")
	}
	if calls != 4 {
		t.Errorf("calls=%d, want 4", calls)
	}
	// No corrective action after the final attempt.
	if failures != 3 {
		t.Errorf("failures=%d, want 3", failures)
	}
}

func TestRetry_RecoveryMidway(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := retry(5,
		func(attempt int) (int, error) {
			calls++
			if attempt < 3 {
				return 0, errors.New("not yet")
			}
			return attempt, nil
		},
		nil)
	if err != nil {
		t.Fatalf("retry: unexpected error: %v", err)
	}
	if got != 3 || calls != 3 {
		t.Errorf("got=%d calls=%d, want 3/3", got, calls)
	}
}

func TestRetry_StopAbortsImmediately(t *testing.T) {
	t.Parallel()

	fatal := errors.New("connection refused")
	calls, failures := 0, 0
	_, err := retry(6,
		func(int) (string, error) {
			calls++
			return "", stop{fatal}
		},
		func(int, error) { failures++ })
	if !errors.Is(err, fatal) {
		t.Fatalf("retry: err=%v, want wrapped fatal error", err)
	}
	if calls != 1 || failures != 0 {
		t.Errorf("calls=%d failures=%d, want 1/0 (no retry of aborted ops)", calls, failures)
	}
}
