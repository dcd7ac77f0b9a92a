// Package speech defines the capability interfaces for speech synthesis and
// transcription.
//
// The dialogue engine treats audio as opaque blobs: recordings arrive as raw
// bytes from the web client and synthesised speech is returned as encoded
// bytes for the client to play. Sample-rate and codec concerns live entirely
// inside provider implementations.
//
// Implementations must be safe for concurrent use.
package speech

import "context"

// VoiceProfile selects the synthesised voice for a bot persona.
type VoiceProfile struct {
	// Accent is a BCP-47-ish accent hint (e.g., "en-US", "en-GB").
	Accent string

	// Gender is "male", "female", or "" for provider default.
	Gender string
}

// Synthesizer converts text into an audio blob.
type Synthesizer interface {
	// Synthesize renders text as encoded audio bytes using the given voice.
	// Returns an error if synthesis fails or ctx is cancelled.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)
}

// Transcriber converts a recorded audio blob into text.
type Transcriber interface {
	// Transcribe returns the text spoken in the recording. language is a
	// BCP-47 hint; empty lets the provider auto-detect.
	Transcribe(ctx context.Context, recording []byte, language string) (string, error)
}
