package conversation_test

import (
	"testing"
	"time"

	"github.com/Bualoitech/learnliko/internal/conversation"
	"github.com/Bualoitech/learnliko/pkg/provider/chat"
)

func newTestSession() *conversation.Session {
	return conversation.NewSession(conversation.SessionConfig{
		Persona: conversation.Persona{Name: "Mia", Intro: "Hi, I'm Mia!"},
		Goals:   []string{"order a coffee"},
		Persist: true,
		User: conversation.UserContext{
			UserID: "u1", LessonID: "l1", ConversationID: "c1",
		},
	})
}

func TestSession_LevelDefaultsToA1(t *testing.T) {
	t.Parallel()

	s := conversation.NewSession(conversation.SessionConfig{})
	if s.Level() != conversation.DefaultLevel {
		t.Errorf("Level()=%q, want %q", s.Level(), conversation.DefaultLevel)
	}
}

func TestSession_MarkInitializedIsOneShot(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	if s.Initialized() {
		t.Fatal("Initialized()=true on fresh session")
	}
	if !s.MarkInitialized() {
		t.Fatal("first MarkInitialized()=false, want true")
	}
	if s.MarkInitialized() {
		t.Error("second MarkInitialized()=true, want false")
	}
	if !s.Initialized() {
		t.Error("Initialized()=false after marking")
	}
}

func TestSession_ScheduleRecapFiresOnce(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.Finish(time.Now())

	if !s.ScheduleRecap() {
		t.Fatal("first ScheduleRecap()=false, want true")
	}
	// Termination logic can fire twice in one tick (goal completion and turn
	// cap); the latch must absorb the duplicate.
	if s.ScheduleRecap() {
		t.Error("second ScheduleRecap()=true, want false")
	}
}

func TestSession_ResetRestoresPreInitState(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.MarkInitialized()
	s.AppendChat(chat.Message{Role: chat.RoleSystem, Content: "prompt"})
	s.Transcript().Append(conversation.Turn{Role: conversation.RoleAssistant})
	s.Goals().Populate(s.GoalTexts())
	s.SetWaiting(true)
	s.SetTranscribing(true)
	s.Finish(time.Now())
	s.ScheduleRecap()

	s.Reset()

	if s.Initialized() {
		t.Error("Initialized()=true after Reset")
	}
	if s.Finished() {
		t.Error("Finished()=true after Reset")
	}
	if s.Waiting() || s.Transcribing() {
		t.Error("waiting/transcribing flags survived Reset")
	}
	if got := len(s.ChatHistory()); got != 0 {
		t.Errorf("ChatHistory() has %d entries after Reset, want 0", got)
	}
	if s.Transcript().Len() != 0 {
		t.Errorf("Transcript().Len()=%d after Reset, want 0", s.Transcript().Len())
	}
	if s.Goals().Count() != 0 {
		t.Errorf("Goals().Count()=%d after Reset, want 0", s.Goals().Count())
	}
	if !s.ScheduleRecap() {
		t.Error("recap latch did not re-arm after Reset")
	}
}

func TestSession_ChatHistoryReturnsCopy(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.AppendChat(chat.Message{Role: chat.RoleUser, Content: "hello"})

	history := s.ChatHistory()
	history[0].Content = "mutated"

	if got := s.ChatHistory()[0].Content; got != "hello" {
		t.Errorf("history mutated through snapshot: %q, want %q", got, "hello")
	}
}

func TestUserContext_Validate(t *testing.T) {
	t.Parallel()

	full := conversation.UserContext{UserID: "u", LessonID: "l", ConversationID: "c"}
	if err := full.Validate(); err != nil {
		t.Errorf("Validate() with full context: unexpected error: %v", err)
	}

	for name, uc := range map[string]conversation.UserContext{
		"missing user":         {LessonID: "l", ConversationID: "c"},
		"missing lesson":       {UserID: "u", ConversationID: "c"},
		"missing conversation": {UserID: "u", LessonID: "l"},
	} {
		if err := uc.Validate(); err == nil {
			t.Errorf("Validate() %s: want error, got nil", name)
		}
	}
}
