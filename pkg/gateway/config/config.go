// Package config loads the gateway configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the gateway settings.
type Config struct {
	Addr string

	// Realtime token minting (transport A).
	RealtimeAPIKey     string
	RealtimeModel      string
	RealtimeVoice      string
	RealtimeSessionURL string

	// Voice-agent socket material (transport B).
	AgentAPIKey     string
	AgentModel      string
	AgentVoice      string
	AgentLanguage   string
	AgentAudioMode  string
	AgentThinkModel string

	// Evaluation and OCR model calls.
	GenAIAPIKey string
	EvalModel   string
	OCRModel    string

	// Scenario images and the OCR fact cache.
	ImagesDir   string
	OCRCacheDir string

	// Batch transcription upstream.
	TranscribeURL    string
	TranscribeAPIKey string
	TranscribeModel  string

	// Results persistence. Empty keeps results in memory.
	DatabaseURL string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables with defaults
// suitable for local development.
func FromEnv() Config {
	return Config{
		Addr: envOr("EXO_ADDR", ":8090"),

		RealtimeAPIKey:     os.Getenv("OPENAI_API_KEY"),
		RealtimeModel:      envOr("EXO_REALTIME_MODEL", "gpt-4o-realtime-preview"),
		RealtimeVoice:      envOr("EXO_REALTIME_VOICE", "alloy"),
		RealtimeSessionURL: envOr("EXO_REALTIME_SESSION_URL", "https://api.openai.com/v1/realtime/sessions"),

		AgentAPIKey:     os.Getenv("DEEPGRAM_API_KEY"),
		AgentModel:      envOr("EXO_AGENT_MODEL", "nova-2"),
		AgentVoice:      envOr("EXO_AGENT_VOICE", "aura-2-pandora-fr"),
		AgentLanguage:   envOr("EXO_AGENT_LANGUAGE", "fr"),
		AgentAudioMode:  envOr("EXO_AGENT_AUDIO_MODE", "hifi"),
		AgentThinkModel: envOr("EXO_AGENT_THINK_MODEL", "gpt-4o-mini"),

		GenAIAPIKey: os.Getenv("GEMINI_API_KEY"),
		EvalModel:   envOr("EXO_EVAL_MODEL", "gemini-2.0-flash"),
		OCRModel:    envOr("EXO_OCR_MODEL", "gemini-2.0-flash"),

		ImagesDir:   envOr("EXO_IMAGES_DIR", "./assets/images"),
		OCRCacheDir: envOr("EXO_OCR_CACHE_DIR", "./data/ocr-cache"),

		TranscribeURL:    envOr("EXO_TRANSCRIBE_URL", "https://api.openai.com/v1/audio/transcriptions"),
		TranscribeAPIKey: envOr("EXO_TRANSCRIBE_API_KEY", os.Getenv("OPENAI_API_KEY")),
		TranscribeModel:  envOr("EXO_TRANSCRIBE_MODEL", "whisper-1"),

		DatabaseURL: os.Getenv("EXO_DATABASE_URL"),

		ReadTimeout:  envDurOr("EXO_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: envDurOr("EXO_WRITE_TIMEOUT", 120*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
