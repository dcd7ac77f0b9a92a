package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Bualoitech/learnliko/internal/conversation"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Conversation policy
	if cfg.Conversation.MaxDialogueCount <= 0 {
		errs = append(errs, fmt.Errorf("conversation.max_dialogue_count must be positive, got %d", cfg.Conversation.MaxDialogueCount))
	}
	if lvl := cfg.Conversation.DefaultLevel; lvl != "" && !conversation.Level(lvl).IsValid() {
		errs = append(errs, fmt.Errorf("conversation.default_level %q is invalid; valid values: A1, A2, B1, B2, C1, C2", lvl))
	}

	// Providers
	if cfg.Providers.Chat.Provider == "" {
		errs = append(errs, errors.New("providers.chat.provider must be set"))
	}
	if cfg.Providers.Chat.Model == "" {
		errs = append(errs, errors.New("providers.chat.model must be set"))
	}
	if cfg.Providers.Speech.APIKey == "" {
		slog.Warn("providers.speech.api_key is empty; relying on OPENAI_API_KEY")
	}

	// Persistence availability
	if cfg.Conversation.Persist && cfg.Database.PostgresDSN == "" {
		slog.Warn("conversation.persist is enabled but database.postgres_dsn is empty; recaps will not be stored")
	}

	return errors.Join(errs...)
}

// SlogLevel converts a [LogLevel] into the corresponding [slog.Level].
// Unrecognised or empty values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
