package llm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrompts_Defaults(t *testing.T) {
	reg, err := LoadPrompts("")
	if err != nil {
		t.Fatalf("LoadPrompts() error = %v", err)
	}
	if reg.Len() != len(defaultPrompts) {
		t.Errorf("Len() = %d, want %d", reg.Len(), len(defaultPrompts))
	}

	out, err := reg.Render("summarize", map[string]string{"sentences": "2", "text": "some text"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "2 sentences") || !strings.Contains(out, "some text") {
		t.Errorf("Render() = %q, placeholders not substituted", out)
	}
}

func TestRender_MissingVariable(t *testing.T) {
	reg, _ := LoadPrompts("")

	if _, err := reg.Render("summarize", map[string]string{"text": "x"}); err == nil {
		t.Error("Render() with missing variable should fail")
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	reg, _ := LoadPrompts("")

	if _, err := reg.Render("nope", nil); err == nil {
		t.Error("Render() of unknown template should fail")
	}
}

func TestLoadPrompts_FileOverridesAndAdds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `prompts:
  summarize: "Short version of {{.text}}"
  greet: "Say hello to {{.name}}"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadPrompts(path)
	if err != nil {
		t.Fatalf("LoadPrompts() error = %v", err)
	}

	out, err := reg.Render("summarize", map[string]string{"text": "abc"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "Short version of abc" {
		t.Errorf("overridden template = %q", out)
	}

	if _, err := reg.Render("greet", map[string]string{"name": "Ada"}); err != nil {
		t.Errorf("added template Render() error = %v", err)
	}
	// Untouched defaults survive.
	if _, err := reg.Render("classify", map[string]string{"categories": "a, b", "text": "x"}); err != nil {
		t.Errorf("default template Render() error = %v", err)
	}
}

func TestLoadPrompts_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	os.WriteFile(path, []byte(":\tnot yaml"), 0o600)

	if _, err := LoadPrompts(path); err == nil {
		t.Error("LoadPrompts() with malformed YAML should fail")
	}

	if _, err := LoadPrompts(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadPrompts() with missing file should fail")
	}
}
