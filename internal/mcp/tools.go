package mcp

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HerbHall/chronicle/pkg/llm"
	"github.com/HerbHall/chronicle/pkg/models"
)

// Tool input types.

type recordGetInput struct {
	ID int64 `json:"id" jsonschema:"The record identifier"`
}

type recordSearchInput struct {
	Field  string `json:"field,omitempty" jsonschema:"Field name to match; empty returns the newest records"`
	Equals string `json:"equals,omitempty" jsonschema:"Value the field must equal"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of records to return (default 20)"`
}

type recordInsertInput struct {
	Fields map[string]any `json:"fields" jsonschema:"Named fields of the record to store"`
}

type journalRecentInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of entries to return (default 20)"`
}

type generateInput struct {
	Prompt      string   `json:"prompt" jsonschema:"The prompt text to send to the model"`
	Model       string   `json:"model,omitempty" jsonschema:"Override the configured default model"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"Sampling temperature (default 0.7)"`
	MaxTokens   int      `json:"max_tokens,omitempty" jsonschema:"Maximum tokens to generate"`
}

// registerTools adds all MCP tools to the server.
func (m *Module) registerTools() {
	sdkmcp.AddTool(m.server, &sdkmcp.Tool{
		Name:        "record_get",
		Description: "Get a single stored record by its integer identifier, including all of its fields and timestamps.",
	}, m.handleRecordGet)

	sdkmcp.AddTool(m.server, &sdkmcp.Tool{
		Name:        "record_search",
		Description: "Search stored records by exact field value. With no field, returns the newest records.",
	}, m.handleRecordSearch)

	sdkmcp.AddTool(m.server, &sdkmcp.Tool{
		Name:        "record_insert",
		Description: "Store a new record with the given named fields and return its assigned identifier.",
	}, m.handleRecordInsert)

	sdkmcp.AddTool(m.server, &sdkmcp.Tool{
		Name:        "journal_recent",
		Description: "Get the most recent activity journal entries, newest first.",
	}, m.handleJournalRecent)

	sdkmcp.AddTool(m.server, &sdkmcp.Tool{
		Name:        "generate",
		Description: "Generate text from a prompt with the configured inference provider. One-shot, non-streaming.",
	}, m.handleGenerate)
}

func (m *Module) handleRecordGet(ctx context.Context, _ *sdkmcp.CallToolRequest, input recordGetInput) (*sdkmcp.CallToolResult, any, error) {
	start := time.Now().UTC()
	m.publishToolCall("record_get", input)

	if m.records == nil {
		return m.finishTool(ctx, "record_get", input, start,
			errorResult("Record store not available. The records module may not be loaded.")), nil, nil
	}

	rec, err := m.records.Record(ctx, input.ID)
	if err != nil {
		return m.finishTool(ctx, "record_get", input, start,
			errorResult(fmt.Sprintf("failed to get record: %v", err))), nil, nil
	}
	if rec == nil {
		return m.finishTool(ctx, "record_get", input, start,
			textResult(fmt.Sprintf("No record found with id %d", input.ID))), nil, nil
	}

	return m.finishTool(ctx, "record_get", input, start, textResult(writeToolJSON(rec))), nil, nil
}

func (m *Module) handleRecordSearch(ctx context.Context, _ *sdkmcp.CallToolRequest, input recordSearchInput) (*sdkmcp.CallToolResult, any, error) {
	start := time.Now().UTC()
	m.publishToolCall("record_search", input)

	if m.records == nil {
		return m.finishTool(ctx, "record_search", input, start,
			errorResult("Record store not available. The records module may not be loaded.")), nil, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	records, err := m.records.SearchRecords(ctx, input.Field, input.Equals, limit)
	if err != nil {
		return m.finishTool(ctx, "record_search", input, start,
			errorResult(fmt.Sprintf("failed to search records: %v", err))), nil, nil
	}

	resp := struct {
		Records []models.Record `json:"records"`
		Count   int             `json:"count"`
	}{
		Records: records,
		Count:   len(records),
	}

	return m.finishTool(ctx, "record_search", input, start, textResult(writeToolJSON(resp))), nil, nil
}

func (m *Module) handleRecordInsert(ctx context.Context, _ *sdkmcp.CallToolRequest, input recordInsertInput) (*sdkmcp.CallToolResult, any, error) {
	start := time.Now().UTC()
	m.publishToolCall("record_insert", input)

	if m.records == nil {
		return m.finishTool(ctx, "record_insert", input, start,
			errorResult("Record store not available. The records module may not be loaded.")), nil, nil
	}
	if len(input.Fields) == 0 {
		return m.finishTool(ctx, "record_insert", input, start,
			errorResult("fields must not be empty")), nil, nil
	}

	id, err := m.records.InsertRecord(ctx, input.Fields)
	if err != nil {
		return m.finishTool(ctx, "record_insert", input, start,
			errorResult(fmt.Sprintf("failed to insert record: %v", err))), nil, nil
	}

	resp := struct {
		ID int64 `json:"id"`
	}{ID: id}

	return m.finishTool(ctx, "record_insert", input, start, textResult(writeToolJSON(resp))), nil, nil
}

func (m *Module) handleJournalRecent(ctx context.Context, _ *sdkmcp.CallToolRequest, input journalRecentInput) (*sdkmcp.CallToolResult, any, error) {
	start := time.Now().UTC()
	m.publishToolCall("journal_recent", input)

	if m.journal == nil {
		return m.finishTool(ctx, "journal_recent", input, start,
			errorResult("Journal not available. The journal module may not be loaded.")), nil, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	entries, err := m.journal.RecentEntries(ctx, limit)
	if err != nil {
		return m.finishTool(ctx, "journal_recent", input, start,
			errorResult(fmt.Sprintf("failed to list journal entries: %v", err))), nil, nil
	}

	resp := struct {
		Entries []models.JournalEntry `json:"entries"`
		Count   int                   `json:"count"`
	}{
		Entries: entries,
		Count:   len(entries),
	}

	return m.finishTool(ctx, "journal_recent", input, start, textResult(writeToolJSON(resp))), nil, nil
}

func (m *Module) handleGenerate(ctx context.Context, _ *sdkmcp.CallToolRequest, input generateInput) (*sdkmcp.CallToolResult, any, error) {
	start := time.Now().UTC()
	m.publishToolCall("generate", input)

	if m.llm == nil {
		return m.finishTool(ctx, "generate", input, start,
			errorResult("Inference not available. The llm module may not be loaded.")), nil, nil
	}
	if input.Prompt == "" {
		return m.finishTool(ctx, "generate", input, start,
			errorResult("prompt must not be empty")), nil, nil
	}

	var opts []llm.CallOption
	if input.Model != "" {
		opts = append(opts, llm.WithModel(input.Model))
	}
	if input.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*input.Temperature))
	}
	if input.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(input.MaxTokens))
	}

	result, err := m.llm.Provider().Generate(ctx, input.Prompt, opts...)
	if err != nil {
		return m.finishTool(ctx, "generate", input, start,
			errorResult(fmt.Sprintf("generation failed: %v", err))), nil, nil
	}

	resp := struct {
		Content    string    `json:"content"`
		Model      string    `json:"model"`
		Usage      llm.Usage `json:"usage"`
		DurationMs int64     `json:"duration_ms"`
	}{
		Content:    result.Content,
		Model:      result.Model,
		Usage:      result.Usage,
		DurationMs: result.Duration.Milliseconds(),
	}

	return m.finishTool(ctx, "generate", input, start, textResult(writeToolJSON(resp))), nil, nil
}

// textResult creates a successful CallToolResult with text content.
func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{
			&sdkmcp.TextContent{Text: text},
		},
	}
}

// errorResult creates an error CallToolResult with text content.
func errorResult(msg string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{
			&sdkmcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
