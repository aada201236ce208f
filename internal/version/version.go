// Package version exposes build metadata injected at link time.
//
// Release builds set these via ldflags:
//
//	go build -ldflags "-X github.com/HerbHall/chronicle/internal/version.Version=v0.1.0 \
//	  -X github.com/HerbHall/chronicle/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/HerbHall/chronicle/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags; defaults identify a local development build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Short returns the bare version string, e.g. "v0.1.0" or "dev".
func Short() string {
	return Version
}

// Info returns a human-readable one-line version description.
func Info() string {
	return fmt.Sprintf("chronicle %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}

// Map returns version fields for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
		"go":      runtime.Version(),
	}
}
