package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	DatabaseURL     string
	LogLevel        string
	JWTSecret       string
	JWTAlgorithm    string
	OllamaHost      string
	AzureAPIKey     string
	AzureEndpoint   string
	AzureAPIVersion string
	Deployment      string
}

// Load reads the optional .env file and assembles the configuration from
// environment variables. The returned value is passed explicitly to the
// components that need it; there is no package-level singleton.
func Load() (*Config, error) {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", "prompt-calibrate.db"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("SECRET_KEY", ""),
		JWTAlgorithm:    getEnv("ALGORITHM", "HS256"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		AzureAPIKey:     getEnv("OPENAI_API_TOKEN", ""),
		AzureEndpoint:   getEnv("ENDPOINT", ""),
		AzureAPIVersion: getEnv("OPENAI_API_VERSION", "2024-02-01"),
		Deployment:      getEnv("DEPLOYMENT", ""),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("SECRET_KEY environment variable is required")
	}
	if cfg.AzureAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_TOKEN environment variable is required")
	}
	if cfg.AzureEndpoint == "" {
		return nil, fmt.Errorf("ENDPOINT environment variable is required")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("DEPLOYMENT environment variable is required")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
