package llm

import (
	"crypto/sha256"
	"encoding/hex"

	pkgllm "github.com/HerbHall/chronicle/pkg/llm"
	"github.com/prometheus/client_golang/prometheus"
)

// maxEventOutput caps the generated text carried on bus events.
const maxEventOutput = 500

// Prometheus generation metrics.
var (
	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of LLM generation requests.",
		},
		[]string{"provider", "model", "outcome"},
	)
	llmRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM generation duration in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)
	llmTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total tokens consumed and produced by LLM calls.",
		},
		[]string{"provider", "model", "kind"},
	)
)

func init() {
	prometheus.MustRegister(llmRequestsTotal)
	prometheus.MustRegister(llmRequestDuration)
	prometheus.MustRegister(llmTokensTotal)
}

// recordGeneration updates metrics for one completed generation.
func recordGeneration(provider string, resp *pkgllm.Response) {
	llmRequestsTotal.WithLabelValues(provider, resp.Model, "success").Inc()
	llmRequestDuration.WithLabelValues(provider, resp.Model).Observe(resp.Duration.Seconds())
	llmTokensTotal.WithLabelValues(provider, resp.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
	llmTokensTotal.WithLabelValues(provider, resp.Model, "completion").Add(float64(resp.Usage.CompletionTokens))
}

// recordFailure counts a failed generation attempt.
func recordFailure(provider, model string) {
	llmRequestsTotal.WithLabelValues(provider, model, "error").Inc()
}

// promptHash returns a short fingerprint of the prompt for event payloads;
// the prompt text itself never leaves the process.
func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}

// truncate limits s to n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	out := make([]rune, 0, n)
	size := 0
	for _, r := range runes {
		size += len(string(r))
		if size > n {
			break
		}
		out = append(out, r)
	}
	return string(out)
}
