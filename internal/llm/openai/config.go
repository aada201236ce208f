package openai

import "time"

// Config holds connection settings for an OpenAI-compatible chat
// completions endpoint (LM Studio, llama.cpp server, vLLM, or the hosted
// API). APIKey may be empty for local servers that skip authentication.
type Config struct {
	BaseURL string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig targets a local LM Studio style server.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:1234",
		Timeout: 120 * time.Second,
	}
}
