// Package mock provides test doubles for the speech provider interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/Bualoitech/learnliko/pkg/provider/speech"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice speech.VoiceProfile
}

// Synthesizer is a mock implementation of speech.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Audio is returned by every Synthesize call.
	Audio []byte

	// Err, if non-nil, is returned instead of Audio.
	Err error

	// Calls records every invocation in order.
	Calls []SynthesizeCall
}

var _ speech.Synthesizer = (*Synthesizer)(nil)

// Synthesize implements speech.Synthesizer.
func (s *Synthesizer) Synthesize(_ context.Context, text string, voice speech.VoiceProfile) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, SynthesizeCall{Text: text, Voice: voice})
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Audio, nil
}

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	Recording []byte
	Language  string
}

// Transcriber is a mock implementation of speech.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Text is returned by every Transcribe call.
	Text string

	// Err, if non-nil, is returned instead of Text.
	Err error

	// Calls records every invocation in order.
	Calls []TranscribeCall
}

var _ speech.Transcriber = (*Transcriber)(nil)

// Transcribe implements speech.Transcriber.
func (t *Transcriber) Transcribe(_ context.Context, recording []byte, language string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(recording))
	copy(cp, recording)
	t.Calls = append(t.Calls, TranscribeCall{Recording: cp, Language: language})
	if t.Err != nil {
		return "", t.Err
	}
	return t.Text, nil
}
