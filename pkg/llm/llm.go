// Package llm provides the public SDK types for LLM provider integrations.
// All inference provider plugins (Ollama, OpenAI-compatible servers)
// implement these interfaces. Implementations live in
// internal/llm/{provider}/ adapters.
//
// This package is Apache 2.0 licensed, part of the public plugin SDK.
package llm

import "context"

// Provider is the core interface implemented by all LLM provider plugins.
// It exposes single-prompt generation and multi-turn chat completion, each
// in blocking and streaming form.
//
// A Provider holds no state between calls; every call is independent and
// carries its own options.
type Provider interface {
	// Generate creates a completion from a single prompt and blocks until
	// the full response is available.
	Generate(ctx context.Context, prompt string, opts ...CallOption) (*Response, error)

	// GenerateStream opens a streaming completion for a single prompt.
	// Fragments arrive through the returned Stream as the endpoint
	// produces them. The stream is not restartable; each call opens a
	// new connection.
	GenerateStream(ctx context.Context, prompt string, opts ...CallOption) (Stream, error)

	// Chat creates a completion from a conversation history and blocks
	// until the full response is available.
	Chat(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error)

	// ChatStream opens a streaming completion for a conversation history.
	ChatStream(ctx context.Context, messages []Message, opts ...CallOption) (Stream, error)
}

// Stream is a lazy sequence of completion fragments. Callers loop on Recv
// until it returns io.EOF, then inspect the final chunk's Response for
// assembled metadata:
//
//	stream, err := p.GenerateStream(ctx, prompt)
//	if err != nil { ... }
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Recv()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil { ... }
//	    fmt.Print(chunk.Content)
//	}
//
// Close terminates the underlying connection. Abandoning a stream without
// Close leaks the connection until the request context ends.
type Stream interface {
	// Recv returns the next fragment. It returns io.EOF after the
	// endpoint signals end of stream, and a mapped provider error if the
	// stream fails mid-flight. Calling Recv after Close returns io.EOF.
	Recv() (*Chunk, error)

	// Close terminates the stream and releases the connection. Safe to
	// call multiple times and concurrently with Recv.
	Close() error
}

// HealthReporter is optionally implemented by providers that can report
// connection health and model availability. Detected via type assertion.
type HealthReporter interface {
	// Heartbeat checks whether the LLM service is reachable.
	Heartbeat(ctx context.Context) error

	// ListModels returns the names of models available from this provider.
	ListModels(ctx context.Context) ([]string, error)
}

// CallOption configures a single Generate or Chat call.
type CallOption func(*CallConfig)

// CallConfig holds the resolved configuration for a single LLM call.
// Users interact through CallOption functions, not this struct directly.
// The option set is closed: model, temperature, and max tokens are the
// only per-call knobs providers recognize.
type CallConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// WithModel sets the model to use for this call, overriding the provider default.
func WithModel(model string) CallOption {
	return func(c *CallConfig) { c.Model = model }
}

// WithTemperature sets the sampling temperature.
// 0.0 = deterministic, 1.0+ = creative. Provider default if unset.
func WithTemperature(temp float64) CallOption {
	return func(c *CallConfig) { c.Temperature = temp }
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(max int) CallOption {
	return func(c *CallConfig) { c.MaxTokens = max }
}

// ApplyOptions creates a CallConfig from a list of options, starting from defaults.
func ApplyOptions(opts ...CallOption) CallConfig {
	cfg := CallConfig{
		Temperature: 0.7,
		MaxTokens:   2048,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
