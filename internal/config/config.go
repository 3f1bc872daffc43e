package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	HTTPPort    int
	BearerToken string

	// Backend selection
	PreferredBackend string
	DefaultVoice     string
	MaxTextLength    int

	// Worker settings
	WorkerPath           string
	WorkerArgs           []string
	WorkerLibPath        string
	WorkerStartupTimeout time.Duration
	WorkerCallTimeout    time.Duration

	// OpenAI settings
	OpenAIAPIKey   string
	OpenAITTSModel string
	OpenAITTSVoice string

	// Edge settings
	EdgeVoice    string
	EdgeDisabled bool

	// Piper settings
	PiperPath  string
	PiperModel string

	// Playback settings
	PlaybackMode      string
	PlaybackLockPath  string
	PlaybackStaleness time.Duration
	// PlaybackPlayers overrides the built-in player list: one tokenized
	// command per entry, tried in order.
	PlaybackPlayers [][]string

	// Logging settings
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	workerArgs, err := getEnvCommand("WORKER_ARGS")
	if err != nil {
		return nil, fmt.Errorf("WORKER_ARGS: %w", err)
	}
	players, err := getEnvCommandList("PLAYBACK_PLAYERS")
	if err != nil {
		return nil, fmt.Errorf("PLAYBACK_PLAYERS: %w", err)
	}

	cfg := &Config{
		// HTTP settings
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		BearerToken: os.Getenv("BEARER_TOKEN"),

		// Backend selection
		PreferredBackend: os.Getenv("PREFERRED_BACKEND"),
		DefaultVoice:     getEnvString("DEFAULT_VOICE", ""),
		MaxTextLength:    getEnvInt("MAX_TEXT_LENGTH", 5000),

		// Worker settings
		WorkerPath:           os.Getenv("WORKER_PATH"),
		WorkerArgs:           workerArgs,
		WorkerLibPath:        os.Getenv("WORKER_LIB_PATH"),
		WorkerStartupTimeout: getEnvDuration("WORKER_STARTUP_TIMEOUT", 45*time.Second),
		WorkerCallTimeout:    getEnvDuration("WORKER_CALL_TIMEOUT", 30*time.Second),

		// OpenAI settings
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAITTSModel: getEnvString("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice: getEnvString("OPENAI_TTS_VOICE", "alloy"),

		// Edge settings
		EdgeVoice:    getEnvString("EDGE_VOICE", "en-US-AriaNeural"),
		EdgeDisabled: getEnvBool("EDGE_DISABLED", false),

		// Piper settings
		PiperPath:  getEnvString("PIPER_PATH", "piper"),
		PiperModel: os.Getenv("PIPER_MODEL"),

		// Playback settings
		PlaybackMode:      getEnvString("PLAYBACK_MODE", "auto"),
		PlaybackLockPath:  os.Getenv("PLAYBACK_LOCK_PATH"),
		PlaybackStaleness: getEnvDuration("PLAYBACK_LOCK_STALENESS", 60*time.Second),
		PlaybackPlayers:   players,

		// Logging settings
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// Validate checks that configuration values are consistent.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.MaxTextLength < 1 {
		return errors.New("MAX_TEXT_LENGTH must be at least 1")
	}

	if c.WorkerStartupTimeout <= 0 {
		return errors.New("WORKER_STARTUP_TIMEOUT must be positive")
	}

	if c.WorkerCallTimeout <= 0 {
		return errors.New("WORKER_CALL_TIMEOUT must be positive")
	}

	if c.PlaybackStaleness <= 0 {
		return errors.New("PLAYBACK_LOCK_STALENESS must be positive")
	}

	validModes := map[string]bool{"auto": true, "stream": true, "legacy": true}
	if !validModes[c.PlaybackMode] {
		return errors.New("PLAYBACK_MODE must be one of: auto, stream, legacy")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvCommand splits the environment variable shell-style into tokens.
// Unset yields nil, not an error.
func getEnvCommand(key string) ([]string, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	return shellwords.Parse(value)
}

// getEnvCommandList parses the environment variable as a comma-separated,
// priority-ordered list of commands, each split shell-style into tokens.
// Unset yields nil, not an error.
func getEnvCommandList(key string) ([][]string, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}

	var commands [][]string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens, err := shellwords.Parse(part)
		if err != nil {
			return nil, err
		}
		if len(tokens) > 0 {
			commands = append(commands, tokens)
		}
	}
	return commands, nil
}
