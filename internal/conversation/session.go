package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Bualoitech/learnliko/pkg/provider/chat"
)

// Level is a CEFR proficiency level used to parameterise text simplification
// and goal scoring.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// DefaultLevel is used when a session does not specify a target level.
const DefaultLevel = LevelA1

// IsValid reports whether l is a recognised CEFR level.
func (l Level) IsValid() bool {
	switch l {
	case LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2:
		return true
	}
	return false
}

// Persona describes the bot character the learner converses with.
type Persona struct {
	// Name is the bot's display name, used in transcript renderings.
	Name string

	// Prompt is the system prompt establishing the persona and the reply scheme.
	Prompt string

	// Intro is the scripted opening line the bot speaks without a chat call.
	Intro string

	// Accent and Gender parameterise speech synthesis.
	Accent string
	Gender string
}

// UserContext identifies the learner and lesson a recap is persisted under.
type UserContext struct {
	UserID         string
	LessonID       string
	ConversationID string
	SectionIndex   int
}

// Validate returns [ErrMissingUserContext] if any identifier required to key
// a recap record is absent.
func (u UserContext) Validate() error {
	if u.UserID == "" || u.LessonID == "" || u.ConversationID == "" {
		return ErrMissingUserContext
	}
	return nil
}

// SessionConfig carries everything needed to create a [Session].
type SessionConfig struct {
	// Persona is the bot character. Persona.Name and Persona.Intro must be set.
	Persona Persona

	// Level is the learner's target proficiency. Defaults to [DefaultLevel].
	Level Level

	// Goals is the ordered list of learning goals declared by the script.
	Goals []string

	// CheckGoals enables goal-progress checking after each bot reply.
	CheckGoals bool

	// Persist enables recap computation and persistence once the session ends.
	Persist bool

	// MaxDialogueCount caps the conversation: it finishes once the transcript
	// reaches 2×MaxDialogueCount turns regardless of goal state.
	MaxDialogueCount int

	// User keys recap persistence. Validated only when Persist is set, at the
	// time the recap runs.
	User UserContext

	// Vocabulary lists lesson words the transcription corrector should snap
	// near-misses to. Empty disables correction.
	Vocabulary []string
}

// Session is the aggregate root for one run of a conversation, from
// initialization to finish or reset.
//
// Identity and policy fields are immutable after construction. Mutable state
// is guarded by an internal lock; the owning dialogue engine is the only
// writer, while HTTP snapshot handlers and the recap computer read
// concurrently.
type Session struct {
	id   string
	cfg  SessionConfig
	turn *TranscriptStore
	goal *GoalTracker

	mu             sync.RWMutex
	chatHistory    []chat.Message
	initialized    bool
	finished       bool
	finishedAt     time.Time
	recapScheduled bool
	waiting        bool
	transcribing   bool
}

// NewSession creates a session with a fresh transcript and goal tracker.
// Goals are not populated until the engine initializes the session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Level == "" {
		cfg.Level = DefaultLevel
	}
	return &Session{
		id:   uuid.NewString(),
		cfg:  cfg,
		turn: NewTranscriptStore(),
		goal: NewGoalTracker(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Vocabulary returns the lesson vocabulary for transcription correction.
func (s *Session) Vocabulary() []string { return s.cfg.Vocabulary }

// Persona returns the bot persona.
func (s *Session) Persona() Persona { return s.cfg.Persona }

// Level returns the learner's target proficiency level.
func (s *Session) Level() Level { return s.cfg.Level }

// GoalTexts returns the scripted goal list.
func (s *Session) GoalTexts() []string { return s.cfg.Goals }

// CheckGoals reports whether goal-progress checking is enabled.
func (s *Session) CheckGoals() bool { return s.cfg.CheckGoals }

// Persist reports whether a recap should be computed and stored on finish.
func (s *Session) Persist() bool { return s.cfg.Persist }

// MaxDialogueCount returns the configured dialogue cap.
func (s *Session) MaxDialogueCount() int { return s.cfg.MaxDialogueCount }

// User returns the persistence user context.
func (s *Session) User() UserContext { return s.cfg.User }

// Transcript returns the session's transcript store.
func (s *Session) Transcript() *TranscriptStore { return s.turn }

// Goals returns the session's goal tracker.
func (s *Session) Goals() *GoalTracker { return s.goal }

// AppendChat appends a message to the completion-only chat history.
func (s *Session) AppendChat(msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatHistory = append(s.chatHistory, msg)
}

// ChatHistory returns a copy of the completion-only chat history.
func (s *Session) ChatHistory() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]chat.Message, len(s.chatHistory))
	copy(cp, s.chatHistory)
	return cp
}

// MarkInitialized records that initialization completed. It returns false if
// the session was already initialized.
func (s *Session) MarkInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return false
	}
	s.initialized = true
	return true
}

// Initialized reports whether the session has been initialized.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Finish marks the session finished at t. Subsequent calls are no-ops.
func (s *Session) Finish(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	s.finishedAt = t
}

// Finished reports whether the conversation has ended.
func (s *Session) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finished
}

// FinishedAt returns the finish timestamp, zero if not finished.
func (s *Session) FinishedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finishedAt
}

// ScheduleRecap flips the recap latch. It returns true exactly once per
// session, so the goal-completion path and the turn-cap path firing in the
// same turn schedule a single recap.
func (s *Session) ScheduleRecap() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recapScheduled {
		return false
	}
	s.recapScheduled = true
	return true
}

// SetWaiting sets the "waiting for bot" UI indicator.
func (s *Session) SetWaiting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting = v
}

// Waiting reports the "waiting for bot" UI indicator.
func (s *Session) Waiting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.waiting
}

// SetTranscribing sets the "transcribing" UI indicator.
func (s *Session) SetTranscribing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcribing = v
}

// Transcribing reports the "transcribing" UI indicator.
func (s *Session) Transcribing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcribing
}

// Reset clears every mutable field back to its initial value: transcript,
// goals, chat history, flags, and the recap latch. The session keeps its
// identity and configuration.
func (s *Session) Reset() {
	s.mu.Lock()
	s.chatHistory = nil
	s.initialized = false
	s.finished = false
	s.finishedAt = time.Time{}
	s.recapScheduled = false
	s.waiting = false
	s.transcribing = false
	s.mu.Unlock()

	s.turn.reset()
	s.goal.reset()
}
