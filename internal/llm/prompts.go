package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// defaultPrompts ship with the plugin and can be overridden from a YAML
// file keyed by template name.
var defaultPrompts = map[string]string{
	"summarize": "Summarize the following text in at most {{.sentences}} sentences:\n\n{{.text}}",
	"expand":    "Expand the following note into a detailed paragraph, keeping its meaning:\n\n{{.text}}",
	"classify":  "Classify the following text into exactly one of these categories: {{.categories}}.\nReply with the category name only.\n\n{{.text}}",
}

// PromptRegistry holds named prompt templates. Placeholders use Go
// template syntax ({{.name}}); rendering with a missing variable is an
// error rather than a silent blank.
type PromptRegistry struct {
	templates map[string]*template.Template
}

// LoadPrompts builds the registry from the built-in defaults, overlaid
// with templates from path when it is non-empty. The file format is:
//
//	prompts:
//	  summarize: "Custom template with {{.text}}"
func LoadPrompts(path string) (*PromptRegistry, error) {
	sources := make(map[string]string, len(defaultPrompts))
	for name, text := range defaultPrompts {
		sources[name] = text
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompts file: %w", err)
		}
		var file struct {
			Prompts map[string]string `yaml:"prompts"`
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse prompts file: %w", err)
		}
		for name, text := range file.Prompts {
			sources[name] = text
		}
	}

	reg := &PromptRegistry{templates: make(map[string]*template.Template, len(sources))}
	for name, text := range sources {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %q: %w", name, err)
		}
		reg.templates[name] = tmpl
	}
	return reg, nil
}

// Render executes the named template with the given variables.
func (r *PromptRegistry) Render(name string, vars map[string]string) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return sb.String(), nil
}

// Names returns the registered template names, sorted.
func (r *PromptRegistry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of registered templates.
func (r *PromptRegistry) Len() int {
	return len(r.templates)
}
