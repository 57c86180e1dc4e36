package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice tutor service
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	AllowAnyOrigin bool   `envconfig:"ALLOW_ANY_ORIGIN" default:"false"` // Accept cross-origin WebSocket clients

	// Tutoring backend (REST). Serves /api/chat, /api/text-to-speech and /api/speech-to-text.
	TutorAPIURL      string `envconfig:"TUTOR_API_URL" default:"http://localhost:8000"`
	TutorAPITimeout  int    `envconfig:"TUTOR_API_TIMEOUT" default:"15"` // seconds
	DefaultStudentID string `envconfig:"DEFAULT_STUDENT_ID" default:"student"`
	DefaultLanguage  string `envconfig:"DEFAULT_LANGUAGE" default:"en-US"` // BCP-47 tag for capture and speech

	// Deepgram live recognition. Optional; without a key capture uses the tutor API upload path.
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`

	// Cartesia TTS. Optional second backend tier.
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"sonic-english"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`

	// Local synthesis and playback
	SynthCommand  string  `envconfig:"SYNTH_COMMAND" default:"espeak-ng"`
	PlayerCommand string  `envconfig:"PLAYER_COMMAND" default:"ffplay -nodisp -autoexit -loglevel quiet -"`
	SpeechRate    float64 `envconfig:"SPEECH_RATE" default:"0.9"`
	SpeechPitch   float64 `envconfig:"SPEECH_PITCH" default:"1.0"`
	SpeechVolume  float64 `envconfig:"SPEECH_VOLUME" default:"1.0"`
	PreferBackend bool    `envconfig:"PREFER_BACKEND_TTS" default:"true"`

	// Audio capture configuration
	CaptureSampleRate  int     `envconfig:"CAPTURE_SAMPLE_RATE" default:"16000"` // PCM16 mono from clients
	AudioBufferSize    int     `envconfig:"AUDIO_BUFFER_SIZE" default:"960000"`  // Upload path buffer, bytes (30s at 16kHz)
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"`
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"40"` // 20ms frames of silence that end an utterance

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges that envconfig cannot express
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TutorAPIURL) == "" {
		return fmt.Errorf("TUTOR_API_URL is required")
	}
	if c.TutorAPITimeout <= 0 {
		return fmt.Errorf("TUTOR_API_TIMEOUT must be positive, got %d", c.TutorAPITimeout)
	}
	if c.SpeechRate < 0.1 || c.SpeechRate > 10 {
		return fmt.Errorf("SPEECH_RATE must be within [0.1, 10], got %v", c.SpeechRate)
	}
	if c.SpeechPitch < 0 || c.SpeechPitch > 2 {
		return fmt.Errorf("SPEECH_PITCH must be within [0, 2], got %v", c.SpeechPitch)
	}
	if c.SpeechVolume < 0 || c.SpeechVolume > 1 {
		return fmt.Errorf("SPEECH_VOLUME must be within [0, 1], got %v", c.SpeechVolume)
	}
	if c.CaptureSampleRate <= 0 {
		return fmt.Errorf("CAPTURE_SAMPLE_RATE must be positive, got %d", c.CaptureSampleRate)
	}
	if c.AudioBufferSize < 2 {
		return fmt.Errorf("AUDIO_BUFFER_SIZE must be at least 2, got %d", c.AudioBufferSize)
	}
	if c.CircuitBreakerMaxFailures <= 0 {
		return fmt.Errorf("CIRCUIT_BREAKER_MAX_FAILURES must be positive, got %d", c.CircuitBreakerMaxFailures)
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive, got %d", c.RetryMaxAttempts)
	}
	return nil
}

// DeepgramEnabled reports whether live recognition through Deepgram is configured
func (c *Config) DeepgramEnabled() bool {
	return c.DeepgramAPIKey != ""
}

// CartesiaEnabled reports whether the Cartesia backend tier is configured
func (c *Config) CartesiaEnabled() bool {
	return c.CartesiaAPIKey != ""
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
