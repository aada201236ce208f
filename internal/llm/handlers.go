package llm

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	pkgllm "github.com/HerbHall/chronicle/pkg/llm"
	"github.com/HerbHall/chronicle/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/config", Handler: m.handleGetConfig},
		{Method: "PUT", Path: "/config", Handler: m.handlePutConfig},
		{Method: "POST", Path: "/test", Handler: m.handleTestConnection},
		{Method: "GET", Path: "/models", Handler: m.handleListModels},
		{Method: "GET", Path: "/prompts", Handler: m.handleListPrompts},
		{Method: "POST", Path: "/generate", Handler: m.handleGenerate},
		{Method: "POST", Path: "/stream", Handler: m.handleStream},
		{Method: "POST", Path: "/diag", Handler: m.handleDiag},
	}
}

// handleGetConfig returns the current provider configuration. API keys are
// never echoed back.
func (m *Module) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp := ConfigResponse{Provider: m.cfg.Provider, Model: m.currentModel()}
	switch m.cfg.Provider {
	case "openai":
		resp.URL = m.cfg.OpenAI.BaseURL
	default:
		resp.URL = m.cfg.Ollama.URL
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePutConfig updates the provider configuration and swaps the
// active provider.
func (m *Module) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if !decodeStrict(w, r, &req) {
		return
	}

	switch req.Provider {
	case "ollama":
		if req.URL != "" {
			m.cfg.Ollama.URL = req.URL
		}
		if req.Model != "" {
			m.cfg.Ollama.Model = req.Model
		}
	case "openai":
		if req.URL != "" {
			m.cfg.OpenAI.BaseURL = req.URL
		}
		if req.Model != "" {
			m.cfg.OpenAI.Model = req.Model
		}
		if req.APIKey != "" {
			m.cfg.OpenAI.APIKey = req.APIKey
		}
	default:
		writeError(w, http.StatusBadRequest, "provider must be ollama or openai")
		return
	}
	m.cfg.Provider = req.Provider

	provider, err := newProvider(m.cfg, m.logger)
	if err != nil {
		m.logger.Error("failed to create provider", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create provider: "+err.Error())
		return
	}
	m.provider = provider

	m.logger.Info("llm provider updated", zap.String("provider", req.Provider))
	m.handleGetConfig(w, r)
}

// handleTestConnection tests the current provider connection.
func (m *Module) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	hr, ok := m.provider.(pkgllm.HealthReporter)
	if !ok {
		writeJSON(w, http.StatusOK, TestResponse{
			Success: false,
			Message: "provider does not support health checks",
		})
		return
	}

	if err := hr.Heartbeat(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, TestResponse{
			Success: false,
			Message: "connection failed: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, TestResponse{
		Success: true,
		Message: "connected",
		Model:   m.currentModel(),
	})
}

// handleListModels returns the models available from the provider.
func (m *Module) handleListModels(w http.ResponseWriter, r *http.Request) {
	hr, ok := m.provider.(pkgllm.HealthReporter)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"models": []string{}})
		return
	}

	models, err := hr.ListModels(r.Context())
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// handleListPrompts returns the registered prompt template names.
func (m *Module) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"prompts": m.prompts.Names()})
}

// handleGenerate runs a blocking generation and returns the full response.
func (m *Module) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, prompt, opts, ok := m.prepareGeneration(w, r)
	if !ok {
		return
	}

	resp, err := m.provider.Generate(r.Context(), prompt, opts...)
	if err != nil {
		recordFailure(m.cfg.Provider, req.Model)
		writeProviderError(w, err)
		return
	}
	m.publishCompletion(r.Context(), prompt, resp)

	writeJSON(w, http.StatusOK, resp)
}

// handleStream runs a streaming generation, relaying fragments to the
// client as NDJSON lines. Closing the connection cancels the upstream
// call through the request context.
func (m *Module) handleStream(w http.ResponseWriter, r *http.Request) {
	req, prompt, opts, ok := m.prepareGeneration(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "streaming unsupported by server")
		return
	}

	stream, err := m.provider.GenerateStream(r.Context(), prompt, opts...)
	if err != nil {
		recordFailure(m.cfg.Provider, req.Model)
		writeProviderError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// Headers are gone; report the failure in-band.
			recordFailure(m.cfg.Provider, req.Model)
			_ = enc.Encode(map[string]string{"error": err.Error()})
			return
		}

		if err := enc.Encode(chunk); err != nil {
			return // client went away
		}
		flusher.Flush()

		if chunk.Done && chunk.Response != nil {
			m.publishCompletion(r.Context(), prompt, chunk.Response)
		}
	}
}

// handleDiag probes the provider endpoint and reports reachability,
// latency, and whether the configured model is present.
func (m *Module) handleDiag(w http.ResponseWriter, r *http.Request) {
	resp := DiagResponse{
		Provider: m.cfg.Provider,
		Model:    m.currentModel(),
	}
	switch m.cfg.Provider {
	case "openai":
		resp.Endpoint = m.cfg.OpenAI.BaseURL
	default:
		resp.Endpoint = m.cfg.Ollama.URL
	}

	hr, ok := m.provider.(pkgllm.HealthReporter)
	if !ok {
		resp.Error = "provider does not support diagnostics"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	start := time.Now()
	if err := hr.Heartbeat(r.Context()); err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Reachable = true
	resp.LatencyMS = time.Since(start).Milliseconds()

	models, err := hr.ListModels(r.Context())
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Models = models
	for _, name := range models {
		if name == resp.Model {
			resp.ModelSeen = true
			break
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// prepareGeneration decodes and validates a generation request, resolving
// the prompt template when one is named.
func (m *Module) prepareGeneration(w http.ResponseWriter, r *http.Request) (GenerateRequest, string, []pkgllm.CallOption, bool) {
	var req GenerateRequest
	if !decodeStrict(w, r, &req) {
		return req, "", nil, false
	}

	if (req.Prompt == "") == (req.Template == "") {
		writeError(w, http.StatusBadRequest, "exactly one of prompt or template is required")
		return req, "", nil, false
	}

	prompt := req.Prompt
	if req.Template != "" {
		rendered, err := m.prompts.Render(req.Template, req.Vars)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return req, "", nil, false
		}
		prompt = rendered
	}

	var opts []pkgllm.CallOption
	if req.Model != "" {
		opts = append(opts, pkgllm.WithModel(req.Model))
	}
	if req.Temperature != nil {
		opts = append(opts, pkgllm.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, pkgllm.WithMaxTokens(req.MaxTokens))
	}
	return req, prompt, opts, true
}

// decodeStrict decodes a JSON body, rejecting unknown keys.
func decodeStrict(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeProviderError maps a provider error code onto an HTTP status.
// Upstream failures surface as gateway errors.
func writeProviderError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case pkgllm.IsInvalidRequestError(err),
		pkgllm.IsModelNotFoundError(err),
		pkgllm.IsContextLengthError(err):
		status = http.StatusBadRequest
	case pkgllm.IsRateLimitError(err):
		status = http.StatusTooManyRequests
	case pkgllm.IsTimeoutError(err):
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://chronicle.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
