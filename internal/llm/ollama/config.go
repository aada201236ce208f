package ollama

import "time"

// Config holds connection settings for a local Ollama server.
type Config struct {
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns settings for a stock local Ollama install.
func DefaultConfig() Config {
	return Config{
		URL:     "http://localhost:11434",
		Model:   "qwen2.5:7b",
		Timeout: 120 * time.Second,
	}
}
