// Package plugintest provides the shared contract suite every
// plugin.Plugin implementation is expected to pass. Module test files
// call TestPluginContract with their constructor.
package plugintest

import (
	"context"
	"testing"

	"github.com/HerbHall/chronicle/pkg/plugin"
	"go.uber.org/zap"
)

// TestPluginContract runs behavioral contract tests against a plugin
// implementation. The suite supplies only a logger, so Init must
// tolerate missing optional dependencies. Call it from the module's
// _test.go:
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestPluginContract(t, func() plugin.Plugin { return records.New() })
//	}
func TestPluginContract(t *testing.T, factory func() plugin.Plugin) {
	t.Helper()

	newInited := func(t *testing.T) plugin.Plugin {
		t.Helper()
		p := factory()
		if err := p.Init(context.Background(), contractDeps(p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		return p
	}

	t.Run("Info_returns_valid_metadata", func(t *testing.T) {
		info := factory().Info()
		if info.Name == "" {
			t.Error("Info().Name must not be empty")
		}
		if info.Version == "" {
			t.Error("Info().Version must not be empty")
		}
		if info.APIVersion < plugin.APIVersionMin {
			t.Errorf("Info().APIVersion = %d, below minimum %d", info.APIVersion, plugin.APIVersionMin)
		}
	})

	t.Run("Init_succeeds_with_valid_deps", func(t *testing.T) {
		newInited(t)
	})

	t.Run("Start_after_Init", func(t *testing.T) {
		p := newInited(t)
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		p.Stop(context.Background())
	})

	t.Run("Stop_without_Start_does_not_panic", func(t *testing.T) {
		p := newInited(t)
		if err := p.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() without Start error = %v", err)
		}
	})

	t.Run("Info_is_idempotent", func(t *testing.T) {
		p := factory()
		a, b := p.Info(), p.Info()
		if a.Name != b.Name || a.Version != b.Version {
			t.Error("Info() must return consistent results")
		}
	})
}

func contractDeps(name string) plugin.Dependencies {
	logger, _ := zap.NewDevelopment()
	return plugin.Dependencies{
		Logger: logger.Named(name),
	}
}
