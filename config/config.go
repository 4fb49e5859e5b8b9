package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voice-summary/internal/domain"
)

// APIKeyEnvVar holds the Google Generative AI key when the config file does not set one.
const APIKeyEnvVar = "GOOGLE_API_KEY"

var ErrMissingAPIKey = errors.New("API key for Google Generative AI is not set in environment variables.")

type Config struct {
	Mode         string             `yaml:"mode"`
	Audio        AudioConfig        `yaml:"audio"`
	Speech       SpeechConfig       `yaml:"speech"`
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Gemini       GeminiConfig       `yaml:"gemini"`
	Anthropic    AnthropicConfig    `yaml:"anthropic"`
	LocalWhisper LocalWhisperConfig `yaml:"local_whisper"`
	Summary      SummaryConfig      `yaml:"summary"`
	TTS          TTSConfig          `yaml:"tts"`
	Server       ServerConfig       `yaml:"server"`
	Pushover     PushoverConfig     `yaml:"pushover"`
	Retry        RetryConfig        `yaml:"retry"`
	Log          LogConfig          `yaml:"log"`
}

type AudioConfig struct {
	Source          string `yaml:"source"`
	FileDir         string `yaml:"file_dir"`
	SampleRate      int    `yaml:"sample_rate"`
	EnergyThreshold int    `yaml:"energy_threshold"`
	PauseThreshold  string `yaml:"pause_threshold"`
	PhraseTimeLimit string `yaml:"phrase_time_limit"`
	ListenTimeout   string `yaml:"listen_timeout"`
}

type SpeechConfig struct {
	Provider        string `yaml:"provider"`
	Language        string `yaml:"language"`
	APIKey          string `yaml:"api_key"`
	CredentialsFile string `yaml:"credentials_file"`
}

type OpenAIConfig struct {
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	TranscriptionModel string `yaml:"transcription_model"`
	ChatModel          string `yaml:"chat_model"`
	MaxTokens          int    `yaml:"max_tokens"`
}

// GeminiConfig uses pointers for temperature and top_p so an explicit 0 is kept.
type GeminiConfig struct {
	APIKey          string   `yaml:"api_key"`
	Model           string   `yaml:"model"`
	Temperature     *float64 `yaml:"temperature"`
	TopP            *float64 `yaml:"top_p"`
	TopK            int      `yaml:"top_k"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	SafetyThreshold string   `yaml:"safety_threshold"`
}

type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type LocalWhisperConfig struct {
	ModelsDir string `yaml:"models_dir"`
	ModelID   string `yaml:"model_id"`
}

type SummaryConfig struct {
	Provider string `yaml:"provider"`
	Prompt   string `yaml:"prompt"`
}

type TTSConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Command string `yaml:"command"`
	Rate    int    `yaml:"rate"`
	Voice   string `yaml:"voice"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr"`
	RateLimit  int    `yaml:"rate_limit"`
	RateWindow string `yaml:"rate_window"`
	// TrustProxy keys the rate limit on X-Forwarded-For / X-Real-IP. Enable
	// only behind a reverse proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type RetryConfig struct {
	MaxAttempts  int    `yaml:"max_attempts"`
	InitialDelay string `yaml:"initial_delay"`
	MaxDelay     string `yaml:"max_delay"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads .env (if present) and then the YAML file at path. A missing
// YAML file is not an error: defaults and the environment are used instead.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// Validate reports configuration that would make every cycle fail.
func (c *Config) Validate() error {
	switch c.Summary.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			return ErrMissingAPIKey
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key is required for the openai summary provider")
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("anthropic.api_key is required for the anthropic summary provider")
		}
	default:
		return fmt.Errorf("unknown summary provider %q", c.Summary.Provider)
	}

	switch c.Speech.Provider {
	case "google", "local":
	case "whisper":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key is required for the whisper speech provider")
		}
	default:
		return fmt.Errorf("unknown speech provider %q", c.Speech.Provider)
	}

	switch c.Mode {
	case "once", "serve":
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	return nil
}

// TTSEnabled reports whether summaries are spoken. Speaking is on unless disabled explicitly.
func (c *Config) TTSEnabled() bool {
	return c.TTS.Enabled == nil || *c.TTS.Enabled
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = "once"
	}
	if c.Audio.Source == "" {
		c.Audio.Source = "microphone"
	}
	if c.Audio.FileDir == "" {
		c.Audio.FileDir = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.EnergyThreshold == 0 {
		c.Audio.EnergyThreshold = 300
	}
	if c.Audio.PauseThreshold == "" {
		c.Audio.PauseThreshold = "800ms"
	}
	if c.Audio.PhraseTimeLimit == "" {
		c.Audio.PhraseTimeLimit = "0s"
	}
	if c.Audio.ListenTimeout == "" {
		c.Audio.ListenTimeout = "0s"
	}
	if c.Speech.Provider == "" {
		c.Speech.Provider = "google"
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "en-US"
	}
	if c.OpenAI.TranscriptionModel == "" {
		c.OpenAI.TranscriptionModel = "whisper-1"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 1024
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv(APIKeyEnvVar)
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.Temperature == nil {
		c.Gemini.Temperature = float64Ptr(1)
	}
	if c.Gemini.TopP == nil {
		c.Gemini.TopP = float64Ptr(0.95)
	}
	if c.Gemini.MaxOutputTokens == 0 {
		c.Gemini.MaxOutputTokens = 8192
	}
	if c.Gemini.SafetyThreshold == "" {
		c.Gemini.SafetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.Anthropic.MaxTokens == 0 {
		c.Anthropic.MaxTokens = 1024
	}
	if c.LocalWhisper.ModelsDir == "" {
		c.LocalWhisper.ModelsDir = "./models"
	}
	if c.LocalWhisper.ModelID == "" {
		c.LocalWhisper.ModelID = "ggml-small"
	}
	if c.Summary.Provider == "" {
		c.Summary.Provider = "gemini"
	}
	if c.Summary.Prompt == "" {
		c.Summary.Prompt = domain.DefaultSummaryPrompt
	}
	if c.TTS.Rate == 0 {
		c.TTS.Rate = 120
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 30
	}
	if c.Server.RateWindow == "" {
		c.Server.RateWindow = "1m"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.InitialDelay == "" {
		c.Retry.InitialDelay = "100ms"
	}
	if c.Retry.MaxDelay == "" {
		c.Retry.MaxDelay = "5s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}
