// Package llm implements the inference plugin: a configurable LLM
// provider (Ollama or any OpenAI-compatible server) exposed over HTTP,
// with prompt templates and generation metrics.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/chronicle/internal/llm/ollama"
	"github.com/HerbHall/chronicle/internal/llm/openai"
	pkgllm "github.com/HerbHall/chronicle/pkg/llm"
	"github.com/HerbHall/chronicle/pkg/plugin"
	"github.com/HerbHall/chronicle/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ roles.LLMProvider    = (*Module)(nil)
)

// EventGenerationCompleted is published after every successful generation.
const EventGenerationCompleted = "llm.generation.completed"

// ModuleConfig holds the inference plugin configuration with
// per-provider sub-configs.
type ModuleConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Provider    string        `mapstructure:"provider"` // "ollama" (default) or "openai"
	PromptsPath string        `mapstructure:"prompts_path"`
	Ollama      ollama.Config `mapstructure:"ollama"`
	OpenAI      openai.Config `mapstructure:"openai"`
}

// Module implements the inference plugin, wrapping a configurable provider.
type Module struct {
	logger   *zap.Logger
	cfg      ModuleConfig
	provider pkgllm.Provider
	prompts  *PromptRegistry
	bus      plugin.EventBus
}

// New creates a new inference plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "llm",
		Version:     "0.2.0",
		Description: "LLM inference (Ollama, OpenAI-compatible servers)",
		Roles:       []string{roles.RoleLLM},
		Required:    false,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = ModuleConfig{
		Enabled:  true,
		Provider: "ollama",
		Ollama:   ollama.DefaultConfig(),
		OpenAI:   openai.DefaultConfig(),
	}
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal llm config: %w", err)
		}
	}

	provider, err := newProvider(m.cfg, m.logger)
	if err != nil {
		return fmt.Errorf("create %s provider: %w", m.cfg.Provider, err)
	}
	m.provider = provider

	prompts, err := LoadPrompts(m.cfg.PromptsPath)
	if err != nil {
		return fmt.Errorf("load prompt templates: %w", err)
	}
	m.prompts = prompts

	m.logger.Info("llm plugin initialized",
		zap.String("provider", m.cfg.Provider),
		zap.Int("prompts", prompts.Len()),
	)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	hr, ok := m.provider.(pkgllm.HealthReporter)
	if !ok {
		return nil
	}

	if err := hr.Heartbeat(ctx); err != nil {
		m.logger.Warn("llm provider not reachable; generation will fail until it comes online",
			zap.String("provider", m.cfg.Provider),
			zap.Error(err),
		)
		return nil
	}

	models, err := hr.ListModels(ctx)
	if err != nil {
		m.logger.Warn("failed to list models",
			zap.String("provider", m.cfg.Provider),
			zap.Error(err),
		)
		return nil
	}

	m.logger.Info("llm provider connected",
		zap.String("provider", m.cfg.Provider),
		zap.Strings("models", models),
	)
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("llm plugin stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	hr, ok := m.provider.(pkgllm.HealthReporter)
	if !ok {
		return plugin.HealthStatus{Status: "healthy", Message: "no health reporter"}
	}

	if err := hr.Heartbeat(ctx); err != nil {
		return plugin.HealthStatus{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	}
	return plugin.HealthStatus{Status: "healthy"}
}

// Provider implements roles.LLMProvider.
func (m *Module) Provider() pkgllm.Provider {
	return m.provider
}

// newProvider creates a provider based on the config.
func newProvider(cfg ModuleConfig, logger *zap.Logger) (pkgllm.Provider, error) {
	switch cfg.Provider {
	case "ollama", "":
		return ollama.New(cfg.Ollama, logger), nil
	case "openai":
		return openai.New(cfg.OpenAI, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// currentModel returns the configured default model for the active provider.
func (m *Module) currentModel() string {
	switch m.cfg.Provider {
	case "openai":
		return m.cfg.OpenAI.Model
	default:
		return m.cfg.Ollama.Model
	}
}

// publishCompletion records metrics and emits the generation event
// consumed by the journal.
func (m *Module) publishCompletion(ctx context.Context, prompt string, resp *pkgllm.Response) {
	recordGeneration(m.cfg.Provider, resp)
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:     EventGenerationCompleted,
		Source:    "llm",
		Timestamp: time.Now(),
		Payload: map[string]any{
			"provider":          m.cfg.Provider,
			"model":             resp.Model,
			"prompt_hash":       promptHash(prompt),
			"duration_ms":       resp.Duration.Milliseconds(),
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"output":            truncate(resp.Content, maxEventOutput),
		},
	})
}
