package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/anatolykoptev/go-kit/env"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Limits      LimitsConfig      `yaml:"limits"`
	Storage     StorageConfig     `yaml:"storage"`
	Whisper     WhisperConfig     `yaml:"whisper"`
	YouTube     YouTubeConfig     `yaml:"youtube"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Workers     WorkersConfig     `yaml:"workers"`
	Cleanup     CleanupConfig     `yaml:"cleanup"`
	GoogleDrive GoogleDriveConfig `yaml:"google_drive"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type AuthConfig struct {
	// Password enables the login gate when non-empty
	Password string `yaml:"password"`
}

type LimitsConfig struct {
	RateLimit int `yaml:"rate_limit"` // requests per minute per IP
}

type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	Driver      string `yaml:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url"`
	OutputDir   string `yaml:"output_dir"` // local markdown export, empty disables
}

type WhisperConfig struct {
	Model       string `yaml:"model"`
	ComputeType string `yaml:"compute_type"`
	Binary      string `yaml:"binary"`
}

type YouTubeConfig struct {
	Binary          string `yaml:"binary"`
	FFmpeg          string `yaml:"ffmpeg"`
	MetadataBackend string `yaml:"metadata_backend"` // ytdlp or page
	Headless        bool   `yaml:"headless"`
}

type SummarizerConfig struct {
	Primary    string           `yaml:"primary"`
	Fallback   string           `yaml:"fallback"` // empty disables
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Claude     ClaudeConfig     `yaml:"claude"`
	Gemini     GeminiConfig     `yaml:"gemini"`
}

type OpenRouterConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type ClaudeConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type WorkersConfig struct {
	Count int `yaml:"count"`
}

type CleanupConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	MaxAgeHours     int `yaml:"max_age_hours"`
}

type GoogleDriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderName      string `yaml:"folder_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Summarizer backend names
var SummarizerBackends = []string{"openrouter", "ollama", "claude", "gemini"}

// Load reads the YAML file at path (a missing file means all defaults),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets environment variables override file values
func (c *Config) applyEnv() {
	c.Server.Host = env.Str("HOST", c.Server.Host)
	c.Server.Port = env.Int("PORT", c.Server.Port)
	c.Auth.Password = env.Str("AUTH_PASSWORD", c.Auth.Password)
	c.Limits.RateLimit = env.Int("RATE_LIMIT", c.Limits.RateLimit)

	c.Storage.DataDir = env.Str("DATA_DIR", c.Storage.DataDir)
	c.Storage.Driver = env.Str("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DatabaseURL = env.Str("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.OutputDir = env.Str("OUTPUT_DIR", c.Storage.OutputDir)

	c.Whisper.Model = env.Str("WHISPER_MODEL", c.Whisper.Model)
	c.Whisper.ComputeType = env.Str("WHISPER_COMPUTE_TYPE", c.Whisper.ComputeType)

	c.YouTube.MetadataBackend = env.Str("METADATA_BACKEND", c.YouTube.MetadataBackend)

	c.Summarizer.Primary = env.Str("SUMMARIZER", c.Summarizer.Primary)
	c.Summarizer.Fallback = env.Str("FALLBACK_SUMMARIZER", c.Summarizer.Fallback)
	c.Summarizer.OpenRouter.APIKey = env.Str("OPENROUTER_API_KEY", c.Summarizer.OpenRouter.APIKey)
	c.Summarizer.OpenRouter.Model = env.Str("OPENROUTER_MODEL", c.Summarizer.OpenRouter.Model)
	c.Summarizer.Ollama.BaseURL = env.Str("OLLAMA_BASE_URL", c.Summarizer.Ollama.BaseURL)
	c.Summarizer.Ollama.Model = env.Str("OLLAMA_MODEL", c.Summarizer.Ollama.Model)
	c.Summarizer.Claude.APIKey = env.Str("ANTHROPIC_API_KEY", c.Summarizer.Claude.APIKey)
	c.Summarizer.Claude.Model = env.Str("CLAUDE_MODEL", c.Summarizer.Claude.Model)
	c.Summarizer.Gemini.APIKey = env.Str("GOOGLE_API_KEY", c.Summarizer.Gemini.APIKey)
	c.Summarizer.Gemini.Model = env.Str("GEMINI_MODEL", c.Summarizer.Gemini.Model)

	c.Workers.Count = env.Int("WORKERS", c.Workers.Count)
	c.Logging.Level = env.Str("LOG_LEVEL", c.Logging.Level)
}

// Validate fills defaults and rejects unknown backend names
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 6999
	}
	if c.Limits.RateLimit <= 0 {
		c.Limits.RateLimit = 10
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = "base"
	}
	if c.Whisper.ComputeType == "" {
		c.Whisper.ComputeType = "int8"
	}
	if c.Whisper.Binary == "" {
		c.Whisper.Binary = "whisper-ctranslate2"
	}
	if c.YouTube.Binary == "" {
		c.YouTube.Binary = "yt-dlp"
	}
	if c.YouTube.FFmpeg == "" {
		c.YouTube.FFmpeg = "ffmpeg"
	}
	if c.YouTube.MetadataBackend == "" {
		c.YouTube.MetadataBackend = "ytdlp"
	}
	if c.Summarizer.Primary == "" {
		c.Summarizer.Primary = "openrouter"
	}
	if c.Summarizer.OpenRouter.Model == "" {
		c.Summarizer.OpenRouter.Model = "anthropic/claude-sonnet-4-5"
	}
	if c.Summarizer.Ollama.BaseURL == "" {
		c.Summarizer.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Summarizer.Ollama.Model == "" {
		c.Summarizer.Ollama.Model = "gemma3:4b"
	}
	if c.Summarizer.Claude.Model == "" {
		c.Summarizer.Claude.Model = "claude-sonnet-4-5-20250929"
	}
	if c.Summarizer.Gemini.Model == "" {
		c.Summarizer.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Workers.Count <= 0 {
		c.Workers.Count = 2
	}
	if c.Cleanup.IntervalMinutes <= 0 {
		c.Cleanup.IntervalMinutes = 60
	}
	if c.Cleanup.MaxAgeHours <= 0 {
		c.Cleanup.MaxAgeHours = 24
	}
	if c.GoogleDrive.FolderName == "" {
		c.GoogleDrive.FolderName = "Video Summaries"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if !knownSummarizer(c.Summarizer.Primary) {
		return fmt.Errorf("summarizer.primary: unknown backend %q", c.Summarizer.Primary)
	}
	if c.Summarizer.Fallback != "" && !knownSummarizer(c.Summarizer.Fallback) {
		return fmt.Errorf("summarizer.fallback: unknown backend %q", c.Summarizer.Fallback)
	}
	switch c.YouTube.MetadataBackend {
	case "ytdlp", "page":
	default:
		return fmt.Errorf("youtube.metadata_backend: unknown backend %q", c.YouTube.MetadataBackend)
	}
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func knownSummarizer(name string) bool {
	for _, n := range SummarizerBackends {
		if n == name {
			return true
		}
	}
	return false
}
