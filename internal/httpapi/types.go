package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Bualoitech/learnliko/internal/conversation"
	"github.com/Bualoitech/learnliko/internal/conversation/engine"
	"github.com/Bualoitech/learnliko/internal/conversation/recap"
)

// maxRequestBytes bounds JSON request bodies.
const maxRequestBytes = 1 << 20

// createRequest is the POST /conversation body.
type createRequest struct {
	Persona struct {
		Name   string `json:"name"`
		Prompt string `json:"prompt"`
		Intro  string `json:"intro"`
		Accent string `json:"accent"`
		Gender string `json:"gender"`
	} `json:"persona"`
	Level            string   `json:"level"`
	Goals            []string `json:"goals"`
	CheckGoals       bool     `json:"checkGoals"`
	Persist          bool     `json:"persist"`
	MaxDialogueCount int      `json:"maxDialogueCount"`
	Vocabulary       []string `json:"vocabulary"`
	User             struct {
		UserID         string `json:"userId"`
		LessonID       string `json:"lessonId"`
		ConversationID string `json:"conversationId"`
		SectionIndex   int    `json:"sectionIndex"`
	} `json:"user"`
}

func (r createRequest) sessionConfig() conversation.SessionConfig {
	level := conversation.Level(r.Level)
	if !level.IsValid() {
		level = conversation.DefaultLevel
	}
	return conversation.SessionConfig{
		Persona: conversation.Persona{
			Name:   r.Persona.Name,
			Prompt: r.Persona.Prompt,
			Intro:  r.Persona.Intro,
			Accent: r.Persona.Accent,
			Gender: r.Persona.Gender,
		},
		Level:            level,
		Goals:            r.Goals,
		CheckGoals:       r.CheckGoals,
		Persist:          r.Persist,
		MaxDialogueCount: r.MaxDialogueCount,
		User: conversation.UserContext{
			UserID:         r.User.UserID,
			LessonID:       r.User.LessonID,
			ConversationID: r.User.ConversationID,
			SectionIndex:   r.User.SectionIndex,
		},
		Vocabulary: r.Vocabulary,
	}
}

// turnView is one transcript turn as the UI sees it.
type turnView struct {
	Role          string    `json:"role"`
	AudioRef      string    `json:"audioRef,omitempty"`
	Transcription *string   `json:"transcription"`
	CreatedAt     time.Time `json:"createdAt"`
}

// goalView is one goal entry as the UI sees it.
type goalView struct {
	Text          string `json:"text"`
	HintUsed      bool   `json:"hintUsed"`
	LastTurnIndex int    `json:"lastTurnIndex"`
	Complete      bool   `json:"complete"`
}

// snapshot is the full session read model. The UI re-reads it after any
// feed notification.
type snapshot struct {
	SessionID       string        `json:"sessionId"`
	State           engine.State  `json:"state"`
	Emotion         string        `json:"emotion"`
	Level           string        `json:"level"`
	PersonaName     string        `json:"personaName"`
	Turns           []turnView    `json:"turns"`
	Goals           []goalView    `json:"goals"`
	ActiveGoalIndex int           `json:"activeGoalIndex"`
	Waiting         bool          `json:"waiting"`
	Transcribing    bool          `json:"transcribing"`
	Finished        bool          `json:"finished"`
	FinishedAt      *time.Time    `json:"finishedAt,omitempty"`
	Recap           *recap.Result `json:"recap,omitempty"`
}

func snapshotOf(eng *engine.Engine, recaps *recap.Computer) snapshot {
	sess := eng.Session()
	turns := sess.Transcript().Turns()
	goals := sess.Goals().Goals()

	snap := snapshot{
		SessionID:       sess.ID(),
		State:           eng.State(),
		Emotion:         eng.LastEmotion(),
		Level:           string(sess.Level()),
		PersonaName:     sess.Persona().Name,
		Turns:           make([]turnView, len(turns)),
		Goals:           make([]goalView, len(goals)),
		ActiveGoalIndex: sess.Goals().ActiveIndex(),
		Waiting:         sess.Waiting(),
		Transcribing:    sess.Transcribing(),
		Finished:        sess.Finished(),
		Recap:           recaps.Result(sess.ID()),
	}
	for i, t := range turns {
		snap.Turns[i] = turnView{
			Role:          string(t.Role),
			AudioRef:      t.AudioRef,
			Transcription: t.Transcription,
			CreatedAt:     t.CreatedAt,
		}
	}
	for i, g := range goals {
		snap.Goals[i] = goalView{
			Text:          g.Text,
			HintUsed:      g.HintUsed,
			LastTurnIndex: g.LastTurnIndex,
			Complete:      g.LastTurnIndex >= 0,
		}
	}
	if sess.Finished() {
		at := sess.FinishedAt()
		snap.FinishedAt = &at
	}
	return snap
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("httpapi: decode request: %w", err)
	}
	if dec.More() {
		return errors.New("httpapi: decode request: trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
