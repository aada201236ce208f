// Package ollama implements llm.Provider against a local Ollama server
// using its native HTTP API (NDJSON streaming).
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HerbHall/chronicle/pkg/llm"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ llm.Provider       = (*Provider)(nil)
	_ llm.HealthReporter = (*Provider)(nil)
)

// Provider talks to an Ollama server over its REST API.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates an Ollama provider. The endpoint is not contacted until the
// first call.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.URL == "" {
		cfg.URL = DefaultConfig().URL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// --- Ollama REST API types ---

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  *bool          `json:"stream,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   *bool          `json:"stream,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireResponse is one NDJSON line from /api/generate or /api/chat. The two
// endpoints differ only in where the text lives.
type wireResponse struct {
	Model           string      `json:"model"`
	Response        string      `json:"response"` // generate endpoint
	Message         chatMessage `json:"message"`  // chat endpoint
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

func (w *wireResponse) text() string {
	if w.Response != "" {
		return w.Response
	}
	return w.Message.Content
}

func (w *wireResponse) usage() llm.Usage {
	return llm.Usage{
		PromptTokens:     w.PromptEvalCount,
		CompletionTokens: w.EvalCount,
		TotalTokens:      w.PromptEvalCount + w.EvalCount,
	}
}

// Generate creates a completion from a single prompt.
func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.CallOption) (*llm.Response, error) {
	cfg := llm.ApplyOptions(opts...)
	noStream := false
	req := generateRequest{
		Model:   p.model(cfg),
		Prompt:  prompt,
		Stream:  &noStream,
		Options: buildOptions(cfg),
	}
	return p.complete(ctx, "/api/generate", req)
}

// Chat creates a completion from a conversation history.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	if len(messages) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "messages must not be empty", nil)
	}

	cfg := llm.ApplyOptions(opts...)
	noStream := false
	req := chatRequest{
		Model:    p.model(cfg),
		Messages: toChatMessages(messages),
		Stream:   &noStream,
		Options:  buildOptions(cfg),
	}
	return p.complete(ctx, "/api/chat", req)
}

// GenerateStream opens a streaming completion for a single prompt.
func (p *Provider) GenerateStream(ctx context.Context, prompt string, opts ...llm.CallOption) (llm.Stream, error) {
	cfg := llm.ApplyOptions(opts...)
	req := generateRequest{
		Model:   p.model(cfg),
		Prompt:  prompt,
		Options: buildOptions(cfg),
	}
	return p.openStream(ctx, "/api/generate", req)
}

// ChatStream opens a streaming completion for a conversation history.
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (llm.Stream, error) {
	if len(messages) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "messages must not be empty", nil)
	}

	cfg := llm.ApplyOptions(opts...)
	req := chatRequest{
		Model:    p.model(cfg),
		Messages: toChatMessages(messages),
		Options:  buildOptions(cfg),
	}
	return p.openStream(ctx, "/api/chat", req)
}

// Heartbeat checks whether the Ollama server is reachable. Ollama answers
// GET / with "Ollama is running".
func (p *Provider) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/", http.NoBody)
	if err != nil {
		return mapError(err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return mapError(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mapError(parseStatusError(resp))
	}
	return nil
}

// ListModels returns the names of locally available models.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/api/tags", http.NoBody)
	if err != nil {
		return nil, mapError(err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, mapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapError(parseStatusError(resp))
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i := range result.Models {
		names[i] = result.Models[i].Name
	}
	return names, nil
}

// complete sends a non-streaming request and decodes the single response.
func (p *Provider) complete(ctx context.Context, path string, payload any) (*llm.Response, error) {
	start := time.Now()

	body, err := p.doPost(ctx, path, payload)
	if err != nil {
		return nil, mapError(err)
	}
	defer body.Close()

	var wire wireResponse
	if err := json.NewDecoder(body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &llm.Response{
		Content:  wire.text(),
		Model:    wire.Model,
		Usage:    wire.usage(),
		Duration: time.Since(start),
		Done:     wire.Done,
	}, nil
}

// openStream sends a streaming request and wraps the NDJSON body.
func (p *Provider) openStream(ctx context.Context, path string, payload any) (llm.Stream, error) {
	body, err := p.doPost(ctx, path, payload)
	if err != nil {
		return nil, mapError(err)
	}
	return newStream(body), nil
}

// doPost sends a JSON POST and returns the raw response body. Errors are
// returned unmapped; callers pass them through mapError.
func (p *Provider) doPost(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseStatusError(resp)
	}
	return resp.Body, nil
}

func (p *Provider) model(cfg llm.CallConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return p.cfg.Model
}

func toChatMessages(messages []llm.Message) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		out[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// buildOptions translates call options into Ollama's options object.
func buildOptions(cfg llm.CallConfig) map[string]any {
	opts := map[string]any{
		"temperature": cfg.Temperature,
	}
	if cfg.MaxTokens > 0 {
		opts["num_predict"] = cfg.MaxTokens
	}
	return opts
}

// stream reads NDJSON fragments off a response body. Recv is called from a
// single goroutine; Close may race with a blocked Recv and unblocks it by
// closing the body.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	start   time.Time

	closeOnce sync.Once
	closed    atomic.Bool

	finished bool
	model    string
	content  strings.Builder
}

func newStream(body io.ReadCloser) *stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &stream{
		body:    body,
		scanner: sc,
		start:   time.Now(),
	}
}

// Recv returns the next fragment, or io.EOF once the endpoint reported done.
func (s *stream) Recv() (*llm.Chunk, error) {
	if s.closed.Load() || s.finished {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var wire wireResponse
		if err := json.Unmarshal(line, &wire); err != nil {
			return nil, fmt.Errorf("decode stream line: %w", err)
		}

		text := wire.text()
		s.content.WriteString(text)
		if wire.Model != "" {
			s.model = wire.Model
		}

		if !wire.Done {
			return &llm.Chunk{Content: text}, nil
		}

		s.finished = true
		s.Close()
		return &llm.Chunk{
			Content: text,
			Done:    true,
			Response: &llm.Response{
				Content:  s.content.String(),
				Model:    s.model,
				Usage:    wire.usage(),
				Duration: time.Since(s.start),
				Done:     true,
			},
		}, nil
	}

	if err := s.scanner.Err(); err != nil && !s.closed.Load() {
		return nil, mapError(err)
	}
	return nil, io.EOF
}

// Close terminates the stream. Idempotent.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.body.Close()
	})
	return nil
}
