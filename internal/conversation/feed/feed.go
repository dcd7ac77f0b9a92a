// Package feed publishes session state changes to UI consumers.
//
// The contract the web UI needs is "read current value" plus "be notified on
// change". The current value is always re-readable from the session snapshot,
// so the feed only carries change notifications: explicit subscriber channels
// with bounded buffers. A subscriber that falls behind loses the oldest
// events rather than blocking the dialogue engine; on reconnect it re-reads
// the snapshot and catches up.
package feed

import (
	"sync"
	"time"
)

// Kind identifies what changed.
type Kind string

const (
	// KindTurnAppended fires when a turn is appended to the transcript.
	KindTurnAppended Kind = "turn_appended"

	// KindTurnUpdated fires when a pending transcription is filled in.
	KindTurnUpdated Kind = "turn_updated"

	// KindGoalAdvanced fires when the active goal completes — the display
	// history's goal-boundary marker.
	KindGoalAdvanced Kind = "goal_advanced"

	// KindHintRevealed fires when the learner reveals the active goal's hint —
	// the display history's hint marker.
	KindHintRevealed Kind = "hint_revealed"

	// KindStateChanged fires when a waiting/transcribing/finished flag flips.
	KindStateChanged Kind = "state_changed"

	// KindRecapPublished fires once the recap result is available.
	KindRecapPublished Kind = "recap_published"
)

// Event is one change notification.
type Event struct {
	Kind      Kind   `json:"kind"`
	SessionID string `json:"sessionId"`

	// TurnIndex is set for turn events, GoalIndex for goal/hint events.
	TurnIndex int `json:"turnIndex,omitempty"`
	GoalIndex int `json:"goalIndex,omitempty"`

	// Emotion accompanies assistant turn-appended events; it drives the
	// persona avatar.
	Emotion string `json:"emotion,omitempty"`

	At time.Time `json:"at"`
}

// defaultBuffer is the per-subscriber channel depth. Sized to absorb a full
// reply cycle (turn, state flips, goal marker) without dropping.
const defaultBuffer = 16

// Feed is a fan-out change-notification hub. Safe for concurrent use.
type Feed struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// New returns an empty feed.
func New() *Feed {
	return &Feed{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its event channel plus a
// cancel function. The channel is closed by cancel; callers must not close it
// themselves.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan Event, defaultBuffer)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber. When a subscriber's buffer is
// full, its oldest event is dropped to make room — notifications are hints,
// not the source of truth.
func (f *Feed) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		for {
			select {
			case ch <- ev:
			default:
				// Buffer full: drop the oldest and retry once.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
