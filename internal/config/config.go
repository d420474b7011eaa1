package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Soda Machine API"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Path string `envconfig:"DB_PATH" default:"soda_machine.db"`
	}

	Gemini GeminiConfig

	Auth AuthConfig
}

// GeminiConfig holds everything the intent parser needs to reach the
// language service. An empty APIKey is allowed: the machine still serves
// catalog endpoints, and every parse degrades to an unknown intent.
type GeminiConfig struct {
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	Model   string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	BaseURL string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
}

type AuthConfig struct {
	JWTSecret     string `envconfig:"JWT_SECRET" default:"change-me-in-production"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin123"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
