// Package mcp exposes records, the activity journal, and one-shot text
// generation to external AI clients over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HerbHall/chronicle/internal/version"
	"github.com/HerbHall/chronicle/pkg/plugin"
	"github.com/HerbHall/chronicle/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// Module implements the MCP server plugin. Tool data access goes through
// the role interfaces in pkg/roles, resolved from the plugin registry at
// start time; a missing role degrades the corresponding tools rather than
// failing the module.
type Module struct {
	logger     *zap.Logger
	bus        plugin.EventBus
	resolver   plugin.PluginResolver
	records    roles.RecordProvider
	journal    roles.JournalProvider
	llm        roles.LLMProvider
	server     *sdkmcp.Server
	apiKey     string
	auditStore *AuditStore
}

// New creates a new MCP plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "mcp",
		Version:      "0.2.0",
		Description:  "Model Context Protocol server for AI tool integration",
		Dependencies: []string{"records"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.resolver = deps.Plugins

	if deps.Config != nil {
		m.apiKey = deps.Config.GetString("api_key")
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "mcp", migrations()); err != nil {
			return fmt.Errorf("mcp migrations: %w", err)
		}
		m.auditStore = NewAuditStore(deps.Store.DB())
	}

	m.logger.Info("mcp module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.resolveProviders()

	m.server = sdkmcp.NewServer(
		&sdkmcp.Implementation{
			Name:    "chronicle",
			Version: version.Version,
		},
		nil,
	)

	m.registerTools()

	m.logger.Info("mcp module started",
		zap.Bool("records", m.records != nil),
		zap.Bool("journal", m.journal != nil),
		zap.Bool("llm", m.llm != nil))
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("mcp module stopped")
	return nil
}

// resolveProviders looks up the role providers the tools depend on. All
// plugins are initialized before any Start runs, so resolution here sees
// the full registry.
func (m *Module) resolveProviders() {
	if m.resolver == nil {
		return
	}
	for _, p := range m.resolver.ResolveByRole(roles.RoleRecordStore) {
		if rp, ok := p.(roles.RecordProvider); ok {
			m.records = rp
			break
		}
	}
	for _, p := range m.resolver.ResolveByRole(roles.RoleJournal) {
		if jp, ok := p.(roles.JournalProvider); ok {
			m.journal = jp
			break
		}
	}
	for _, p := range m.resolver.ResolveByRole(roles.RoleLLM) {
		if lp, ok := p.(roles.LLMProvider); ok {
			m.llm = lp
			break
		}
	}
}

// NewStdioServer builds a standalone MCP server carrying the same tools
// as the HTTP module, for stdio transport. Tool calls are not audited in
// this mode; the providers are wired directly by the caller.
func NewStdioServer(records roles.RecordProvider, journal roles.JournalProvider, llm roles.LLMProvider, logger *zap.Logger) *sdkmcp.Server {
	m := &Module{
		logger:  logger,
		records: records,
		journal: journal,
		llm:     llm,
	}
	m.server = sdkmcp.NewServer(
		&sdkmcp.Implementation{
			Name:    "chronicle",
			Version: version.Version,
		},
		nil,
	)
	m.registerTools()
	return m.server
}

// Routes implements plugin.HTTPProvider.
// The MCP streamable HTTP handler is mounted at the plugin's route prefix.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/", Handler: m.handleMCP},
		{Method: "GET", Path: "/", Handler: m.handleMCP},
		{Method: "DELETE", Path: "/", Handler: m.handleMCP},
		{Method: "GET", Path: "/audit", Handler: m.handleAuditList},
	}
}

// handleMCP wraps the MCP streamable HTTP handler with optional API key auth.
func (m *Module) handleMCP(w http.ResponseWriter, r *http.Request) {
	if m.apiKey != "" {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != m.apiKey {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
	}

	if m.server == nil {
		http.Error(w, `{"error":"mcp server not started"}`, http.StatusServiceUnavailable)
		return
	}

	handler := sdkmcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *sdkmcp.Server { return m.server },
		nil,
	)
	handler.ServeHTTP(w, r)
}

// handleAuditList returns paginated tool call audit entries.
func (m *Module) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if m.auditStore == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not available")
		return
	}

	tool := r.URL.Query().Get("tool")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	entries, total, err := m.auditStore.List(r.Context(), tool, limit, offset)
	if err != nil {
		m.logger.Error("failed to query audit log", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query audit log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// publishToolCall emits an event when an MCP tool is invoked.
func (m *Module) publishToolCall(toolName string, params any) {
	if m.bus == nil {
		return
	}

	m.bus.PublishAsync(context.Background(), plugin.Event{
		Topic:     "mcp.tool.called",
		Source:    "mcp",
		Timestamp: time.Now().UTC(),
		Payload: map[string]any{
			"tool":   toolName,
			"params": params,
		},
	})
}

// finishTool persists an audit record for a completed tool call and passes
// the result through. Outcome is "ok" unless the result carries an error,
// in which case the error text is stored instead.
func (m *Module) finishTool(ctx context.Context, tool string, input any, start time.Time, result *sdkmcp.CallToolResult) *sdkmcp.CallToolResult {
	if m.auditStore == nil {
		return result
	}

	outcome := "ok"
	if result != nil && result.IsError {
		outcome = resultText(result)
	}
	entry := AuditEntry{
		Tool:       tool,
		Arguments:  writeToolJSON(input),
		Outcome:    outcome,
		DurationMs: time.Since(start).Milliseconds(),
		CreatedAt:  start,
	}
	if err := m.auditStore.Insert(ctx, entry); err != nil {
		m.logger.Warn("failed to write audit log", zap.Error(err))
	}
	return result
}

// resultText extracts the first text content from a tool result.
func resultText(result *sdkmcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// writeToolJSON marshals v to JSON for tool responses.
func writeToolJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"error":"failed to marshal response"}`
	}
	return string(data)
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
