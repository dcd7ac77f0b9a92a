// Package openai implements the speech.Synthesizer and speech.Transcriber
// interfaces using the OpenAI hosted audio endpoints: /v1/audio/speech for
// synthesis and /v1/audio/transcriptions (Whisper) for transcription.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Bualoitech/learnliko/pkg/provider/speech"
)

// Compile-time checks against the capability interfaces.
var (
	_ speech.Synthesizer = (*Provider)(nil)
	_ speech.Transcriber = (*Provider)(nil)
)

// defaultTimeout bounds a single audio API call. Synthesis of a reply-length
// text and transcription of a short recording both finish well within this.
const defaultTimeout = 60 * time.Second

// Provider is an OpenAI-backed speech provider.
type Provider struct {
	client   oai.Client
	ttsModel oai.SpeechModel
	sttModel oai.AudioModel
}

type config struct {
	baseURL  string
	ttsModel oai.SpeechModel
	sttModel oai.AudioModel
}

// Option is a functional option for configuring a [Provider].
type Option func(*config)

// WithBaseURL overrides the OpenAI API endpoint, e.g. for a compatible proxy.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTTSModel selects the synthesis model. Default: tts-1.
func WithTTSModel(model string) Option {
	return func(c *config) { c.ttsModel = oai.SpeechModel(model) }
}

// WithSTTModel selects the transcription model. Default: whisper-1.
func WithSTTModel(model string) Option {
	return func(c *config) { c.sttModel = oai.AudioModel(model) }
}

// New creates a Provider authenticated with apiKey. An empty apiKey falls
// back to the OPENAI_API_KEY environment variable.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai speech: no API key: pass one or set OPENAI_API_KEY")
	}

	cfg := config{
		ttsModel: oai.SpeechModelTTS1,
		sttModel: oai.AudioModelWhisper1,
	}
	for _, o := range opts {
		o(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: defaultTimeout}),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		ttsModel: cfg.ttsModel,
		sttModel: cfg.sttModel,
	}, nil
}

// Synthesize implements [speech.Synthesizer]. It returns MP3-encoded audio.
func (p *Provider) Synthesize(ctx context.Context, text string, voice speech.VoiceProfile) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("openai speech: text must not be empty")
	}

	res, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          p.ttsModel,
		Input:          text,
		Voice:          selectVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: synthesize: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("openai speech: read audio body: %w", err)
	}
	return data, nil
}

// Transcribe implements [speech.Transcriber].
func (p *Provider) Transcribe(ctx context.Context, recording []byte, language string) (string, error) {
	if len(recording) == 0 {
		return "", fmt.Errorf("openai speech: recording must not be empty")
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(recording), "recording.webm", "audio/webm"),
		Model: p.sttModel,
	}
	if language != "" {
		// Whisper wants the ISO 639-1 primary subtag, not a full BCP-47 tag.
		params.Language = oai.String(primarySubtag(language))
	}

	tr, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai speech: transcribe: %w", err)
	}
	return tr.Text, nil
}

// selectVoice maps an accent/gender profile onto one of OpenAI's fixed
// voices. The catalogue has no accent dimension, so gender is the only axis
// that matters; unknown profiles fall back to a neutral voice.
func selectVoice(v speech.VoiceProfile) oai.AudioSpeechNewParamsVoice {
	switch strings.ToLower(v.Gender) {
	case "male":
		return oai.AudioSpeechNewParamsVoice("onyx")
	case "female":
		return oai.AudioSpeechNewParamsVoice("nova")
	default:
		return oai.AudioSpeechNewParamsVoiceAlloy
	}
}

// primarySubtag reduces a BCP-47 tag like "en-US" to "en".
func primarySubtag(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}
