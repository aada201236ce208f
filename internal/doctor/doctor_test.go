package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// mockOllama serves the minimal endpoint surface the checks touch.
func mockOllama(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Ollama is running"))
	})
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"test-model"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, url string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("plugins.llm.provider", "ollama")
	v.Set("plugins.llm.ollama.url", url)
	v.Set("plugins.llm.ollama.model", "test-model")
	v.Set("plugins.llm.ollama.timeout", "5s")
	return v
}

func TestCheckStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronicle.db")

	detail, err := checkStore(context.Background(), path)
	if err != nil {
		t.Fatalf("checkStore: %v", err)
	}
	if detail != path {
		t.Errorf("detail = %q, want %q", detail, path)
	}
}

func TestCheckStore_BadPath(t *testing.T) {
	if _, err := checkStore(context.Background(), "/nonexistent-dir/deeply/chronicle.db"); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestCheckHeartbeat(t *testing.T) {
	srv := mockOllama(t)
	v := testConfig(t, srv.URL)

	detail, err := checkHeartbeat(context.Background(), v)
	if err != nil {
		t.Fatalf("checkHeartbeat: %v", err)
	}
	if detail != srv.URL {
		t.Errorf("detail = %q, want %q", detail, srv.URL)
	}
}

func TestCheckHeartbeat_Down(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	v := testConfig(t, srv.URL)

	if _, err := checkHeartbeat(context.Background(), v); err == nil {
		t.Fatal("expected error for closed endpoint")
	}
}

func TestCheckModel(t *testing.T) {
	srv := mockOllama(t)

	tests := []struct {
		name    string
		model   string
		wantErr bool
	}{
		{name: "present", model: "test-model"},
		{name: "absent", model: "missing-model", wantErr: true},
		{name: "unconfigured", model: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := testConfig(t, srv.URL)
			v.Set("plugins.llm.ollama.model", tc.model)

			_, err := checkModel(context.Background(), v)
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("checkModel: %v", err)
			}
		})
	}
}

func TestCheckPing_InvalidEndpoint(t *testing.T) {
	if _, err := checkPing(context.Background(), "not a url"); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
}

func TestRun_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronicle.yaml")
	if err := os.WriteFile(path, []byte("plugins:\n  bogus_key: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	results, ok := Run(context.Background(), path)
	if ok {
		t.Fatal("expected failure for rejected config")
	}
	if len(results) != 1 || results[0].Name != "config" {
		t.Fatalf("results = %+v, want single failed config check", results)
	}
	if results[0].Passed {
		t.Error("config check must fail")
	}
}

func TestHealthReporter_UnknownProvider(t *testing.T) {
	v := viper.New()
	v.Set("plugins.llm.provider", "bard")

	if _, err := healthReporter(v); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
