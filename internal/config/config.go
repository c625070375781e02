// Package config resolves rye's settings: built-in defaults, then an optional
// TOML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/petasbytes/rye/internal/provider"
	"github.com/petasbytes/rye/internal/render"
)

// Edit modes for the interactive prompt.
const (
	EditModeEmacs = "emacs"
	EditModeVi    = "vi"
)

const defaultDirName = ".rye"

type Config struct {
	// ConversationsDir holds one markdown file per conversation.
	ConversationsDir string `toml:"conversations_dir"`
	Provider         string `toml:"provider"`
	// TokenBudget caps the estimated history size sent per turn; 0 is unlimited.
	TokenBudget int    `toml:"token_budget"`
	EditMode    string `toml:"edit_mode"`
	Observe     bool   `toml:"observe"`

	Anthropic AnthropicConfig `toml:"anthropic"`
	Ollama    OllamaConfig    `toml:"ollama"`
	Render    RenderConfig    `toml:"render"`
	Log       LogConfig       `toml:"log"`
}

type AnthropicConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

type OllamaConfig struct {
	Host  string `toml:"host"`
	Model string `toml:"model"`
}

type RenderConfig struct {
	Style    string `toml:"style"`
	WordWrap int    `toml:"word_wrap"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ConversationsDir: defaultDir(),
		Provider:         provider.NameAnthropic,
		EditMode:         EditModeEmacs,
		Anthropic: AnthropicConfig{
			Model: provider.DefaultModel,
		},
		Ollama: OllamaConfig{
			Host:  provider.DefaultOllamaHost,
			Model: provider.DefaultOllamaModel,
		},
		Render: RenderConfig{Style: render.StyleAuto},
		Log:    LogConfig{Level: "warn"},
	}
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDirName
	}
	return filepath.Join(home, defaultDirName)
}

// LookupFunc reads one environment variable; os.LookupEnv in production.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from the config file named by RYE_CONFIG (or
// ~/.rye/config.toml when present) and the process environment.
func Load() (*Config, error) {
	return LoadWith(os.LookupEnv)
}

// LoadWith is Load with an explicit environment.
func LoadWith(env LookupFunc) (*Config, error) {
	cfg := Default()

	path, explicit := env("RYE_CONFIG")
	if !explicit || path == "" {
		path = filepath.Join(defaultDir(), "config.toml")
	}
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if explicit && path != "" {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg; keys missing from the file keep their values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slog.Warn("unknown config keys ignored", "file", path, "keys", strings.Join(keys, ","))
	}
	return nil
}

// ApplyEnv overrides cfg with the environment. Empty values are ignored.
func (c *Config) ApplyEnv(env LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := env(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("RYE_CONVERSATIONS"); ok {
		c.ConversationsDir = v
	}
	if v, ok := get("RYE_PROVIDER"); ok {
		c.Provider = strings.ToLower(v)
	}
	if v, ok := get("ANTHROPIC_API_KEY"); ok {
		c.Anthropic.APIKey = v
	}
	if v, ok := get("ANTHROPIC_MODEL"); ok {
		c.Anthropic.Model = v
	}
	if v, ok := get("OLLAMA_HOST"); ok {
		c.Ollama.Host = v
	}
	if v, ok := get("OLLAMA_MODEL"); ok {
		c.Ollama.Model = v
	}
	if v, ok := get("RYE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("RYE_LOG_FILE"); ok {
		c.Log.File = v
	}
	if v, ok := get("RYE_STYLE"); ok {
		c.Render.Style = strings.ToLower(v)
	}
	if v, ok := get("RYE_OBSERVE_JSON"); ok {
		c.Observe = v == "1" || strings.EqualFold(v, "true")
	}

	var errs []error
	if v, ok := get("RYE_TOKEN_BUDGET"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid RYE_TOKEN_BUDGET %q: %w", v, err))
		} else {
			c.TokenBudget = n
		}
	}
	if v, ok := get("RYE_WORD_WRAP"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid RYE_WORD_WRAP %q: %w", v, err))
		} else {
			c.Render.WordWrap = n
		}
	}

	// VISUAL wins over EDITOR, as with most tools that launch an editor.
	if v, ok := get("VISUAL"); ok {
		c.EditMode = EditModeFromEditor(v)
	} else if v, ok := get("EDITOR"); ok {
		c.EditMode = EditModeFromEditor(v)
	}
	return errors.Join(errs...)
}

// EditModeFromEditor maps an editor command to a line-editing mode: vi-family
// editors select vi mode, anything else emacs mode.
func EditModeFromEditor(editor string) string {
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		return EditModeEmacs
	}
	switch filepath.Base(fields[0]) {
	case "vi", "vim", "nvim", "gvim", "mvim", "nvi", "elvis", "vis":
		return EditModeVi
	}
	return EditModeEmacs
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ConversationsDir) == "" {
		errs = append(errs, errors.New("conversations_dir is empty"))
	}
	switch c.Provider {
	case provider.NameAnthropic, provider.NameOllama:
	default:
		errs = append(errs, fmt.Errorf("%w: %q (want %s or %s)", provider.ErrUnknownProvider, c.Provider, provider.NameAnthropic, provider.NameOllama))
	}
	if c.TokenBudget < 0 {
		errs = append(errs, fmt.Errorf("token_budget must be >= 0, got %d", c.TokenBudget))
	}
	if c.Render.WordWrap < 0 {
		errs = append(errs, fmt.Errorf("word_wrap must be >= 0, got %d", c.Render.WordWrap))
	}
	switch c.EditMode {
	case EditModeEmacs, EditModeVi:
	default:
		errs = append(errs, fmt.Errorf("unknown edit_mode %q (want %s or %s)", c.EditMode, EditModeEmacs, EditModeVi))
	}
	switch c.Render.Style {
	case "", render.StyleAuto, render.StyleDark, render.StyleLight, render.StylePlain, "notty":
	default:
		errs = append(errs, fmt.Errorf("unknown style %q", c.Render.Style))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ProviderConfig returns the settings for the selected provider.
func (c *Config) ProviderConfig() provider.Config {
	pc := provider.Config{Name: c.Provider}
	switch c.Provider {
	case provider.NameOllama:
		pc.Model = c.Ollama.Model
		pc.Host = c.Ollama.Host
	default:
		pc.Model = c.Anthropic.Model
		pc.APIKey = c.Anthropic.APIKey
		pc.MaxTokens = c.Anthropic.MaxTokens
	}
	return pc
}

// ParseLevel accepts debug, info, warn/warning and error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
