package llm

// ConfigResponse is the body for GET /config.
type ConfigResponse struct {
	Provider string `json:"provider"` // "ollama" or "openai"
	Model    string `json:"model"`
	URL      string `json:"url"`
}

// ConfigRequest is the body for PUT /config. Empty fields keep their
// current values.
type ConfigRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	URL      string `json:"url,omitempty"`
	APIKey   string `json:"api_key,omitempty"` // openai only
}

// TestResponse is the body for POST /test.
type TestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

// GenerateRequest is the body for POST /generate and POST /stream.
// Exactly one of Prompt or Template must be set; Vars feeds the template.
// The tuning knobs mirror the closed call-option set.
type GenerateRequest struct {
	Prompt      string            `json:"prompt,omitempty"`
	Template    string            `json:"template,omitempty"`
	Vars        map[string]string `json:"vars,omitempty"`
	Model       string            `json:"model,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

// DiagResponse is the body for POST /diag.
type DiagResponse struct {
	Provider  string   `json:"provider"`
	Endpoint  string   `json:"endpoint"`
	Reachable bool     `json:"reachable"`
	LatencyMS int64    `json:"latency_ms"`
	Models    []string `json:"models,omitempty"`
	Model     string   `json:"model"`
	ModelSeen bool     `json:"model_present"`
	Error     string   `json:"error,omitempty"`
}
