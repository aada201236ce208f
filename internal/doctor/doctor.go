// Package doctor runs preflight diagnostics for the chronicle server:
// config validity, store writability, and reachability of the configured
// inference endpoint. Checks run concurrently; each reports pass or fail
// with a short detail line.
package doctor

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/chronicle/internal/config"
	"github.com/HerbHall/chronicle/internal/llm/ollama"
	"github.com/HerbHall/chronicle/internal/llm/openai"
	"github.com/HerbHall/chronicle/internal/store"
	pkgllm "github.com/HerbHall/chronicle/pkg/llm"
	"go.uber.org/zap"
)

// Result is the outcome of a single check.
type Result struct {
	Name    string
	Passed  bool
	Detail  string
	Elapsed time.Duration
}

// check is a named diagnostic. run returns a human detail line on
// success and an error on failure.
type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// checkTimeout bounds each individual check.
const checkTimeout = 10 * time.Second

// Run executes all preflight checks against the given config file and
// returns their results in a fixed order. The second return value is
// true only when every check passed.
func Run(ctx context.Context, configPath string) ([]Result, bool) {
	start := time.Now()

	v, err := config.Load(configPath)
	if err != nil {
		// Nothing else is checkable without a usable config.
		return []Result{{
			Name:    "config",
			Passed:  false,
			Detail:  err.Error(),
			Elapsed: time.Since(start),
		}}, false
	}

	checks := []check{
		{name: "config", run: func(context.Context) (string, error) {
			if v.ConfigFileUsed() == "" {
				return "no config file, using defaults", nil
			}
			return v.ConfigFileUsed(), nil
		}},
		{name: "store", run: func(ctx context.Context) (string, error) {
			return checkStore(ctx, v.GetString("database.path"))
		}},
		{name: "ping", run: func(ctx context.Context) (string, error) {
			return checkPing(ctx, inferenceURL(v))
		}},
		{name: "heartbeat", run: func(ctx context.Context) (string, error) {
			return checkHeartbeat(ctx, v)
		}},
		{name: "model", run: func(ctx context.Context) (string, error) {
			return checkModel(ctx, v)
		}},
	}

	results := make([]Result, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()

			began := time.Now()
			detail, err := c.run(cctx)
			r := Result{Name: c.name, Elapsed: time.Since(began)}
			if err != nil {
				r.Detail = err.Error()
			} else {
				r.Passed = true
				r.Detail = detail
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait() // checks report through results, never through errors

	ok := true
	for _, r := range results {
		if !r.Passed {
			ok = false
		}
	}
	return results, ok
}

// checkStore opens the database read-write and performs a write probe in
// a throwaway temp table.
func checkStore(ctx context.Context, path string) (string, error) {
	st, err := store.New(path)
	if err != nil {
		return "", fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	stmts := []string{
		"CREATE TEMP TABLE doctor_probe (id INTEGER PRIMARY KEY, v TEXT)",
		"INSERT INTO doctor_probe (v) VALUES ('ok')",
		"DROP TABLE doctor_probe",
	}
	for _, stmt := range stmts {
		if _, err := st.DB().ExecContext(ctx, stmt); err != nil {
			return "", fmt.Errorf("write probe: %w", err)
		}
	}
	return path, nil
}

// checkPing sends ICMP echo requests to the inference host. Hosts that
// drop ICMP fail this check without implying the endpoint is down; the
// heartbeat check is authoritative for that.
func checkPing(ctx context.Context, endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid inference endpoint %q", endpoint)
	}

	pinger, err := probing.NewPinger(u.Hostname())
	if err != nil {
		return "", fmt.Errorf("creating pinger: %w", err)
	}
	pinger.Count = 3
	pinger.Timeout = 3 * time.Second
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("ping %s: %w", u.Hostname(), err)
		}
	case <-ctx.Done():
		pinger.Stop()
		return "", ctx.Err()
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return "", fmt.Errorf("ping %s: no replies to %d requests", u.Hostname(), stats.PacketsSent)
	}
	return fmt.Sprintf("%s avg rtt %s", u.Hostname(), stats.AvgRtt.Round(time.Millisecond)), nil
}

// checkHeartbeat asks the configured provider whether its endpoint is up.
func checkHeartbeat(ctx context.Context, v *viper.Viper) (string, error) {
	hr, err := healthReporter(v)
	if err != nil {
		return "", err
	}
	if err := hr.Heartbeat(ctx); err != nil {
		return "", err
	}
	return inferenceURL(v), nil
}

// checkModel verifies the configured default model is present on the
// endpoint. An empty configured model passes vacuously.
func checkModel(ctx context.Context, v *viper.Viper) (string, error) {
	model := configuredModel(v)
	if model == "" {
		return "no default model configured", nil
	}

	hr, err := healthReporter(v)
	if err != nil {
		return "", err
	}
	models, err := hr.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("listing models: %w", err)
	}
	for _, m := range models {
		if m == model {
			return model, nil
		}
	}
	return "", fmt.Errorf("model %q not present on endpoint (%d models available)", model, len(models))
}

// healthReporter builds the configured provider and returns its health
// surface.
func healthReporter(v *viper.Viper) (pkgllm.HealthReporter, error) {
	logger := zap.NewNop()
	var p pkgllm.Provider
	switch provider := v.GetString("plugins.llm.provider"); provider {
	case "ollama", "":
		p = ollama.New(ollama.Config{
			URL:     v.GetString("plugins.llm.ollama.url"),
			Model:   v.GetString("plugins.llm.ollama.model"),
			Timeout: v.GetDuration("plugins.llm.ollama.timeout"),
		}, logger)
	case "openai":
		p = openai.New(openai.Config{
			BaseURL: v.GetString("plugins.llm.openai.url"),
			Model:   v.GetString("plugins.llm.openai.model"),
			APIKey:  v.GetString("plugins.llm.openai.api_key"),
			Timeout: v.GetDuration("plugins.llm.openai.timeout"),
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	hr, ok := p.(pkgllm.HealthReporter)
	if !ok {
		return nil, fmt.Errorf("provider does not report health")
	}
	return hr, nil
}

// inferenceURL returns the endpoint URL of the active provider.
func inferenceURL(v *viper.Viper) string {
	if v.GetString("plugins.llm.provider") == "openai" {
		return v.GetString("plugins.llm.openai.url")
	}
	return v.GetString("plugins.llm.ollama.url")
}

// configuredModel returns the default model of the active provider.
func configuredModel(v *viper.Viper) string {
	if v.GetString("plugins.llm.provider") == "openai" {
		return v.GetString("plugins.llm.openai.model")
	}
	return v.GetString("plugins.llm.ollama.model")
}
