// Package openai implements llm.Provider against any OpenAI-compatible
// chat completions endpoint, streaming via server-sent events.
package openai

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
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ llm.Provider       = (*Provider)(nil)
	_ llm.HealthReporter = (*Provider)(nil)
)

// Provider talks to an OpenAI-compatible server over its REST API.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	counter    tokenCounter
}

// New creates an OpenAI-compatible provider. An empty API key is allowed;
// local servers typically run unauthenticated.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// --- OpenAI REST API types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatChunk is one SSE event payload in a streaming response.
type chatChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate creates a completion from a single prompt.
func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.CallOption) (*llm.Response, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

// GenerateStream opens a streaming completion for a single prompt.
func (p *Provider) GenerateStream(ctx context.Context, prompt string, opts ...llm.CallOption) (llm.Stream, error) {
	return p.ChatStream(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

// Chat creates a completion from a conversation history.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	if len(messages) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "messages must not be empty", nil)
	}

	cfg := llm.ApplyOptions(opts...)
	start := time.Now()

	body, err := p.doPost(ctx, p.buildRequest(messages, cfg, false))
	if err != nil {
		return nil, mapError(err)
	}
	defer body.Close()

	var resp chatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	var content string
	done := true
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		done = resp.Choices[0].FinishReason != "length"
	}

	return &llm.Response{
		Content: content,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Duration: time.Since(start),
		Done:     done,
	}, nil
}

// ChatStream opens a streaming completion for a conversation history.
// OpenAI-compatible servers do not report token usage on streamed
// responses, so usage on the final chunk is estimated locally.
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (llm.Stream, error) {
	if len(messages) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "messages must not be empty", nil)
	}

	cfg := llm.ApplyOptions(opts...)

	body, err := p.doPost(ctx, p.buildRequest(messages, cfg, true))
	if err != nil {
		return nil, mapError(err)
	}

	var prompt strings.Builder
	for _, m := range messages {
		prompt.WriteString(m.Content)
		prompt.WriteByte('\n')
	}

	return &sseStream{
		body:         body,
		scanner:      newSSEScanner(body),
		start:        time.Now(),
		counter:      &p.counter,
		promptTokens: p.counter.count(prompt.String()),
	}, nil
}

// Heartbeat checks whether the endpoint is reachable via the models listing.
func (p *Provider) Heartbeat(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}

// ListModels returns the available model IDs.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/models", http.NoBody)
	if err != nil {
		return nil, mapError(err)
	}
	p.authorize(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, mapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapError(parseStatusError(resp))
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	names := make([]string, len(result.Data))
	for i := range result.Data {
		names[i] = result.Data[i].ID
	}
	return names, nil
}

func (p *Provider) buildRequest(messages []llm.Message, cfg llm.CallConfig, stream bool) chatRequest {
	model := cfg.Model
	if model == "" {
		model = p.cfg.Model
	}

	apiMessages := make([]chatMessage, len(messages))
	for i, m := range messages {
		apiMessages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	return chatRequest{
		Model:       model,
		Messages:    apiMessages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Stream:      stream,
	}
}

func (p *Provider) authorize(req *http.Request) {
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
}

// doPost sends the chat completion request and returns the raw body.
func (p *Provider) doPost(ctx context.Context, payload chatRequest) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

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

// parseStatusError reads an OpenAI-style error body: {"error": {"message", "type"}}.
func parseStatusError(resp *http.Response) error {
	se := &statusError{StatusCode: resp.StatusCode, Message: resp.Status}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return se
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		se.Message = payload.Error.Message
		se.Type = payload.Error.Type
	}
	return se
}

func newSSEScanner(body io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return sc
}

// sseStream reads "data:" events off a streaming chat completion. The
// terminating "[DONE]" event produces the final chunk with the assembled
// response and locally estimated usage.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	start   time.Time

	counter      *tokenCounter
	promptTokens int

	closeOnce sync.Once
	closed    atomic.Bool

	finished bool
	model    string
	content  strings.Builder
}

func (s *sseStream) Recv() (*llm.Chunk, error) {
	if s.closed.Load() || s.finished {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue // comments, blank keep-alive lines
		}
		data = strings.TrimSpace(data)

		if data == "[DONE]" {
			s.finished = true
			s.Close()
			content := s.content.String()
			completion := s.counter.count(content)
			return &llm.Chunk{
				Done: true,
				Response: &llm.Response{
					Content: content,
					Model:   s.model,
					Usage: llm.Usage{
						PromptTokens:     s.promptTokens,
						CompletionTokens: completion,
						TotalTokens:      s.promptTokens + completion,
					},
					Duration: time.Since(s.start),
					Done:     true,
				},
			}, nil
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("decode stream event: %w", err)
		}
		if chunk.Model != "" {
			s.model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		text := chunk.Choices[0].Delta.Content
		s.content.WriteString(text)
		if text == "" {
			continue // role-only or finish_reason-only events
		}
		return &llm.Chunk{Content: text}, nil
	}

	if err := s.scanner.Err(); err != nil && !s.closed.Load() {
		return nil, mapError(err)
	}
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.body.Close()
	})
	return nil
}

// tokenCounter estimates token counts with the cl100k_base BPE. When the
// encoding ranks cannot be loaded (offline hosts), it degrades to a
// whitespace word count rather than failing the stream.
type tokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func (c *tokenCounter) count(text string) int {
	c.once.Do(func() {
		if enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE); err == nil {
			c.enc = enc
		}
	})
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}
