package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigError reports a configuration file that cannot be used: unknown
// keys, a missing required setting, or an unreadable file. The server
// refuses to start on a ConfigError rather than guessing at intent.
type ConfigError struct {
	Keys []string // Offending keys, if the problem is key-level.
	Err  error    // Underlying cause (may be nil when Keys is set).
}

func (e *ConfigError) Error() string {
	if len(e.Keys) > 0 {
		return fmt.Sprintf("configuration rejected: unrecognized keys: %s", strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("configuration rejected: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// File mirrors the complete recognized configuration tree. Loading decodes
// the config file exactly against this shape; any key outside it fails
// with a ConfigError.
type File struct {
	Server struct {
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
		DataDir string `mapstructure:"data_dir"`
	} `mapstructure:"server"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Plugins struct {
		Records struct {
			Enabled        bool `mapstructure:"enabled"`
			DefaultPerPage int  `mapstructure:"default_per_page"`
			MaxPerPage     int  `mapstructure:"max_per_page"`
		} `mapstructure:"records"`
		LLM struct {
			Enabled     bool   `mapstructure:"enabled"`
			Provider    string `mapstructure:"provider"`
			PromptsPath string `mapstructure:"prompts_path"`
			Ollama      struct {
				URL     string `mapstructure:"url"`
				Model   string `mapstructure:"model"`
				Timeout string `mapstructure:"timeout"`
			} `mapstructure:"ollama"`
			OpenAI struct {
				URL     string `mapstructure:"url"`
				Model   string `mapstructure:"model"`
				APIKey  string `mapstructure:"api_key"`
				Timeout string `mapstructure:"timeout"`
			} `mapstructure:"openai"`
		} `mapstructure:"llm"`
		Journal struct {
			Enabled             bool   `mapstructure:"enabled"`
			Retention           string `mapstructure:"retention"`
			MaintenanceInterval string `mapstructure:"maintenance_interval"`
		} `mapstructure:"journal"`
		WS struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"ws"`
		MCP struct {
			Enabled bool   `mapstructure:"enabled"`
			APIKey  string `mapstructure:"api_key"`
		} `mapstructure:"mcp"`
	} `mapstructure:"plugins"`
}

// Load reads configuration from file and environment variables.
//
// Search order: the explicit configPath if given, then ./chronicle.yaml,
// then $HOME/.chronicle/chronicle.yaml. A .env file in the working
// directory is loaded into the environment first when present.
// Environment variables use the CHRON_ prefix (CHRON_SERVER_PORT=9090).
//
// The config file is decoded exactly: unrecognized keys fail with a
// *ConfigError rather than being silently ignored.
func Load(configPath string) (*viper.Viper, error) {
	// .env support carried over from the original deployment layout.
	// Missing file is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("chronicle")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".chronicle"))
		}
	}

	v.SetEnvPrefix("CHRON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{Err: fmt.Errorf("reading config: %w", err)}
		}
		// No config file is fine -- defaults plus environment.
		return v, nil
	}

	if err := checkStrict(v.ConfigFileUsed()); err != nil {
		return nil, err
	}

	return v, nil
}

// checkStrict re-reads the config file in isolation (no defaults, no env)
// and decodes it exactly against the recognized tree. Defaults must be
// excluded or every known key would mask unknown siblings at the same level.
func checkStrict(path string) error {
	fv := viper.New()
	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil {
		return &ConfigError{Err: fmt.Errorf("re-reading config for validation: %w", err)}
	}

	var f File
	if err := fv.UnmarshalExact(&f); err != nil {
		if keys := invalidKeys(err); len(keys) > 0 {
			return &ConfigError{Keys: keys, Err: err}
		}
		return &ConfigError{Err: fmt.Errorf("decoding config: %w", err)}
	}
	return nil
}

// invalidKeys extracts the offending key names from a mapstructure
// "has invalid keys" error. Returns nil if the error has another shape.
func invalidKeys(err error) []string {
	var keys []string
	for _, line := range strings.Split(err.Error(), "\n") {
		const marker = "has invalid keys: "
		if i := strings.Index(line, marker); i >= 0 {
			for _, k := range strings.Split(line[i+len(marker):], ",") {
				keys = append(keys, strings.TrimSpace(k))
			}
		}
	}
	return keys
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/chronicle.db")

	v.SetDefault("plugins.records.enabled", true)
	v.SetDefault("plugins.records.default_per_page", 50)
	v.SetDefault("plugins.records.max_per_page", 500)
	v.SetDefault("plugins.llm.enabled", true)
	v.SetDefault("plugins.llm.provider", "ollama")
	v.SetDefault("plugins.llm.ollama.url", "http://localhost:11434")
	v.SetDefault("plugins.llm.ollama.model", "qwen2.5:7b")
	v.SetDefault("plugins.llm.ollama.timeout", "5m")
	v.SetDefault("plugins.llm.openai.url", "http://localhost:1234")
	v.SetDefault("plugins.llm.openai.model", "")
	v.SetDefault("plugins.llm.openai.timeout", "5m")
	v.SetDefault("plugins.journal.enabled", true)
	v.SetDefault("plugins.journal.retention", "2160h")
	v.SetDefault("plugins.journal.maintenance_interval", "1h")
	v.SetDefault("plugins.ws.enabled", true)
	v.SetDefault("plugins.mcp.enabled", true)
}
