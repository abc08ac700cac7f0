package config

import (
	"sync"
	"time"
)

var (
	ollamaOnce   sync.Once
	ollamaConfig *OllamaConfig
)

type OllamaConfig struct {
	BaseURL        string
	DefaultModel   string
	EmbeddingModel string
	Timeout        time.Duration
	PullTimeout    time.Duration
	MaxConcurrent  int
}

func GetOllamaConfig() *OllamaConfig {
	ollamaOnce.Do(func() {
		loadEnv()

		ollamaConfig = &OllamaConfig{
			BaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			DefaultModel:   getEnv("OLLAMA_DEFAULT_MODEL", "llama3.2:3b"),
			EmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			Timeout:        getEnvDuration("OLLAMA_TIMEOUT", 120*time.Second),
			PullTimeout:    getEnvDuration("OLLAMA_PULL_TIMEOUT", 30*time.Minute),
			MaxConcurrent:  getEnvInt("OLLAMA_MAX_CONCURRENT", 8),
		}
	})
	return ollamaConfig
}
