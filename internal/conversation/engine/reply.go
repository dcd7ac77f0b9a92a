package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// botReply is the structured reply scheme the chat model is instructed to
// produce. Message is the persona's utterance; Emotion drives the avatar.
type botReply struct {
	Message string `json:"message"`
	Emotion string `json:"emotion"`
}

// defaultEmotion is used when the model omits the emotion or produces one
// outside the recognized set.
const defaultEmotion = "neutral"

// knownEmotions is the avatar's supported expression set.
var knownEmotions = map[string]struct{}{
	"neutral":   {},
	"happy":     {},
	"sad":       {},
	"angry":     {},
	"surprised": {},
	"confused":  {},
}

// parseBotReply decodes a raw chat-completion response into the reply
// scheme. Markdown code fences around the JSON are tolerated. A missing or
// unrecognized emotion is not an error; it falls back to [defaultEmotion].
// An empty message is an error.
func parseBotReply(raw string) (botReply, error) {
	cleaned := stripFences(raw)

	var reply botReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return botReply{}, fmt.Errorf("engine: decode bot reply: %w", err)
	}
	if strings.TrimSpace(reply.Message) == "" {
		return botReply{}, fmt.Errorf("engine: bot reply has no message")
	}
	if _, ok := knownEmotions[strings.ToLower(reply.Emotion)]; !ok {
		reply.Emotion = defaultEmotion
	} else {
		reply.Emotion = strings.ToLower(reply.Emotion)
	}
	return reply, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, from a model response.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{}") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// encodeAudioRef packs synthesized MP3 audio into a data URI the web client
// can play directly, so no blob storage round-trip is needed for bot speech.
func encodeAudioRef(audio []byte) string {
	return "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(audio)
}
