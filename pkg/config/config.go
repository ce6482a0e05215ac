// Package config loads editor history settings from a TOML or YAML file.
// Missing files yield the defaults; the format follows the file extension.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	history "github.com/goliatone/go-history"
	"github.com/goliatone/go-history/rules"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath      = "~/.config/go-history/config.toml"
	defaultSnapshotPath    = "~/.local/share/go-history/snapshots.db"
	defaultHTTPAddr        = "127.0.0.1:7480"
	defaultAutosaveTimeout = 5 * time.Second
)

// Config captures the settings an editor session needs.
type Config struct {
	DocumentID string
	TenantID   string
	MaxHistory int
	Autosave   Autosave
	HTTPAddr   string
	Rules      []rules.Rule
}

// Autosave controls background snapshot persistence.
type Autosave struct {
	Enabled bool
	Path    string
	Timeout time.Duration
}

type rawConfig struct {
	DocumentID string       `toml:"document_id" yaml:"document_id"`
	TenantID   string       `toml:"tenant_id" yaml:"tenant_id"`
	MaxHistory int          `toml:"max_history" yaml:"max_history"`
	HTTPAddr   string       `toml:"http_addr" yaml:"http_addr"`
	Autosave   rawAutosave  `toml:"autosave" yaml:"autosave"`
	Rules      []rules.Rule `toml:"rules" yaml:"rules"`
}

type rawAutosave struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
	Timeout string `toml:"timeout" yaml:"timeout"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		MaxHistory: history.DefaultMaxHistory,
		HTTPAddr:   defaultHTTPAddr,
		Autosave: Autosave{
			Path:    mustExpand(defaultSnapshotPath),
			Timeout: defaultAutosaveTimeout,
		},
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &raw)
	default:
		err = toml.Unmarshal(bytes, &raw)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw rawConfig) (Config, error) {
	cfg := Default()
	cfg.DocumentID = strings.TrimSpace(raw.DocumentID)
	cfg.TenantID = strings.TrimSpace(raw.TenantID)

	switch {
	case raw.MaxHistory < 0:
		return Config{}, fmt.Errorf("config: max_history must not be negative, got %d", raw.MaxHistory)
	case raw.MaxHistory > 0:
		cfg.MaxHistory = raw.MaxHistory
	}

	if addr := strings.TrimSpace(raw.HTTPAddr); addr != "" {
		cfg.HTTPAddr = addr
	}

	cfg.Autosave.Enabled = raw.Autosave.Enabled
	if p := strings.TrimSpace(raw.Autosave.Path); p != "" {
		if p == ":memory:" {
			cfg.Autosave.Path = p
		} else {
			cfg.Autosave.Path = mustExpand(p)
		}
	}
	if timeout := strings.TrimSpace(raw.Autosave.Timeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: autosave.timeout: %w", err)
		}
		cfg.Autosave.Timeout = d
	}

	for i, rule := range raw.Rules {
		cfg.Rules = append(cfg.Rules, rules.Rule{
			Name:     strings.TrimSpace(rule.Name),
			Action:   strings.TrimSpace(rule.Action),
			When:     strings.TrimSpace(rule.When),
			Describe: strings.TrimSpace(rule.Describe),
			Engine:   strings.ToLower(strings.TrimSpace(rule.Engine)),
		})
		if cfg.Rules[i].Action == "" {
			return Config{}, fmt.Errorf("config: rules[%d]: action is required", i)
		}
	}

	return cfg, nil
}

// RuleSet compiles the configured classifier rules. It returns nil when no
// rules are configured.
func (c Config) RuleSet(opts ...rules.RuleSetOption) (*rules.RuleSet, error) {
	if len(c.Rules) == 0 {
		return nil, nil
	}
	set, err := rules.Compile(c.Rules, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: compile rules: %w", err)
	}
	return set, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
