package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type BatchConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxPendingAge time.Duration `mapstructure:"max_pending_age"`
	ExportDir     string        `mapstructure:"export_dir"`
}

type Config struct {
	DatabaseURL string      `mapstructure:"database_url"`
	ServerPort  string      `mapstructure:"server_port"`
	JWTSecret   string      `mapstructure:"jwt_secret"`
	CORSOrigin  string      `mapstructure:"cors_origin"`
	LLM         LLMConfig   `mapstructure:"llm"`
	Batch       BatchConfig `mapstructure:"batch"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.CORSOrigin == "" {
		config.CORSOrigin = "http://localhost:3000"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}
	if config.LLM.APIKey == "" {
		log.Fatal("LLM API key must be set in the config file")
	}

	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "https://api.anthropic.com"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "claude-sonnet-4-20250514"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 4096
	}
	if config.LLM.RequestTimeout == 0 {
		config.LLM.RequestTimeout = 60 * time.Second
	}

	if config.Batch.PollInterval == 0 {
		config.Batch.PollInterval = 5 * time.Minute
	}
	if config.Batch.MaxPendingAge == 0 {
		config.Batch.MaxPendingAge = 24 * time.Hour
	}
	if config.Batch.ExportDir == "" {
		config.Batch.ExportDir = "./exports"
	}

	return &config
}
