package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/HerbHall/chronicle/pkg/llm"
)

// statusError is an HTTP-level error from an OpenAI-compatible endpoint.
type statusError struct {
	StatusCode int
	Type       string // error.type from the response body, if present
	Message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Message)
}

// mapError translates transport and HTTP failures into llm.ProviderError codes.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.NewProviderError(llm.ErrCodeTimeout, "openai request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return llm.NewProviderError(llm.ErrCodeTimeout, "openai request timed out", err)
	}

	var se *statusError
	if errors.As(err, &se) {
		return mapStatusError(se)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "dial tcp"):
		return llm.NewProviderError(llm.ErrCodeUnavailable, "openai endpoint unreachable", err)
	}

	return llm.NewProviderError(llm.ErrCodeServerError, "openai request failed", err)
}

func mapStatusError(se *statusError) error {
	switch {
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		return llm.NewProviderError(llm.ErrCodeAuthentication, se.Message, se)
	case se.StatusCode == http.StatusTooManyRequests:
		return llm.NewProviderError(llm.ErrCodeRateLimit, se.Message, se)
	case se.StatusCode == http.StatusNotFound && strings.Contains(se.Message, "model"),
		se.Type == "model_not_found", se.Type == "invalid_model":
		return llm.NewProviderError(llm.ErrCodeModelNotFound, se.Message, se)
	case se.Type == "context_length_exceeded",
		strings.Contains(se.Message, "context length"):
		return llm.NewProviderError(llm.ErrCodeContextLength, se.Message, se)
	case se.StatusCode >= 500:
		return llm.NewProviderError(llm.ErrCodeServerError, se.Message, se)
	default:
		return llm.NewProviderError(llm.ErrCodeInvalidRequest, se.Message, se)
	}
}
