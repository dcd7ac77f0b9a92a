// Package config provides the configuration schema and loader for the
// learnliko conversation service.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for learnliko.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Conversation ConversationConfig `yaml:"conversation"`
	Database     DatabaseConfig     `yaml:"database"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// collaborator.
type ProvidersConfig struct {
	Chat   ChatProviderConfig   `yaml:"chat"`
	Speech SpeechProviderConfig `yaml:"speech"`
}

// ChatProviderConfig selects the chat-completion backend. The same backend
// also serves text simplification and conversation analysis.
type ChatProviderConfig struct {
	// Provider is the backend name (e.g., "openai", "anthropic", "ollama").
	Provider string `yaml:"provider"`

	// Model selects a specific model (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// APIKey is the authentication key. Empty falls back to the backend's
	// environment variable (e.g., OPENAI_API_KEY).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default API endpoint.
	BaseURL string `yaml:"base_url"`
}

// SpeechProviderConfig configures the synthesis/transcription backend.
type SpeechProviderConfig struct {
	// APIKey authenticates against the OpenAI audio endpoints.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url"`

	// TTSModel selects the synthesis model. Default: tts-1.
	TTSModel string `yaml:"tts_model"`

	// STTModel selects the transcription model. Default: whisper-1.
	STTModel string `yaml:"stt_model"`
}

// ConversationConfig holds the dialogue-engine policy defaults applied to
// new sessions.
type ConversationConfig struct {
	// MaxDialogueCount caps the conversation length: a session finishes once
	// its transcript reaches 2×MaxDialogueCount turns. Must be positive.
	MaxDialogueCount int `yaml:"max_dialogue_count"`

	// CheckGoals enables goal-progress checking after each bot reply.
	CheckGoals bool `yaml:"check_goals"`

	// Persist enables recap computation and persistence on finish.
	Persist bool `yaml:"persist"`

	// DefaultLevel is the CEFR level used when a session does not specify
	// one (e.g., "A1").
	DefaultLevel string `yaml:"default_level"`
}

// DatabaseConfig holds the recap persistence settings.
type DatabaseConfig struct {
	// PostgresDSN is the connection string for the recap store. Empty
	// disables persistence regardless of the Persist flag.
	PostgresDSN string `yaml:"postgres_dsn"`
}
