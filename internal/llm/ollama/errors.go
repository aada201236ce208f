package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/HerbHall/chronicle/pkg/llm"
	"github.com/ollama/ollama/api"
)

// parseStatusError reads an Ollama error response body into an
// api.StatusError. Ollama reports errors as {"error": "message"}.
func parseStatusError(resp *http.Response) error {
	se := api.StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			se.ErrorMessage = payload.Error
		}
	}
	return se
}

// mapError translates transport and HTTP failures into llm.ProviderError
// codes so callers can classify without knowing the provider.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.NewProviderError(llm.ErrCodeTimeout, "ollama request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return llm.NewProviderError(llm.ErrCodeTimeout, "ollama request timed out", err)
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return mapStatusError(statusErr)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "dial tcp"):
		return llm.NewProviderError(llm.ErrCodeUnavailable, "ollama endpoint unreachable", err)
	}

	return llm.NewProviderError(llm.ErrCodeServerError, "ollama request failed", err)
}

func mapStatusError(se api.StatusError) error {
	msg := se.ErrorMessage
	if msg == "" {
		msg = se.Status
	}

	switch {
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		return llm.NewProviderError(llm.ErrCodeAuthentication, msg, se)
	case se.StatusCode == http.StatusNotFound && strings.Contains(msg, "model"):
		return llm.NewProviderError(llm.ErrCodeModelNotFound, msg, se)
	case se.StatusCode == http.StatusTooManyRequests:
		return llm.NewProviderError(llm.ErrCodeRateLimit, msg, se)
	case se.StatusCode == http.StatusBadRequest && strings.Contains(msg, "context length"):
		return llm.NewProviderError(llm.ErrCodeContextLength, msg, se)
	case se.StatusCode >= 500:
		return llm.NewProviderError(llm.ErrCodeServerError, msg, se)
	default:
		return llm.NewProviderError(llm.ErrCodeInvalidRequest, msg, se)
	}
}
