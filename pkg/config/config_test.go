package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	history "github.com/goliatone/go-history"
	"github.com/goliatone/go-history/rules"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MaxHistory != history.DefaultMaxHistory {
		t.Fatalf("MaxHistory = %d, want %d", cfg.MaxHistory, history.DefaultMaxHistory)
	}
	if cfg.HTTPAddr != defaultHTTPAddr {
		t.Fatalf("HTTPAddr = %q, want %q", cfg.HTTPAddr, defaultHTTPAddr)
	}
	if cfg.Autosave.Enabled || !strings.HasPrefix(cfg.Autosave.Path, home) {
		t.Fatalf("unexpected autosave defaults %+v", cfg.Autosave)
	}
	if cfg.Autosave.Timeout != defaultAutosaveTimeout {
		t.Fatalf("Timeout = %v, want %v", cfg.Autosave.Timeout, defaultAutosaveTimeout)
	}
}

func TestLoad_ParsesAndTrimsTOML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, "config.toml", `
document_id = "  thumb-1  "
tenant_id = " studio "
max_history = 20
http_addr = " :9000 "

[autosave]
enabled = true
path = "  ~/snapshots.db  "
timeout = "250ms"

[[rules]]
name = "nudge"
action = " move "
when = "builtin == 'move' && layer.x - previous.x < 5"
describe = "'nudged ' + layer.name"

[[rules]]
action = "edit"
when = "'text' in fields"
engine = " CEL "
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DocumentID != "thumb-1" || cfg.TenantID != "studio" || cfg.MaxHistory != 20 || cfg.HTTPAddr != ":9000" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.Autosave.Enabled || cfg.Autosave.Path != filepath.Join(home, "snapshots.db") {
		t.Fatalf("unexpected autosave %+v", cfg.Autosave)
	}
	if cfg.Autosave.Timeout != 250*time.Millisecond {
		t.Fatalf("Timeout = %v", cfg.Autosave.Timeout)
	}
	if len(cfg.Rules) != 2 || cfg.Rules[0].Action != "move" || cfg.Rules[1].Engine != "cel" {
		t.Fatalf("unexpected rules %+v", cfg.Rules)
	}

	set, err := cfg.RuleSet()
	if err != nil {
		t.Fatalf("RuleSet returned error: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 compiled rules, got %d", set.Len())
	}
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
max_history: 10
autosave:
  enabled: true
  path: ":memory:"
rules:
  - name: big
    action: resize
    when: layer.width > 500
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MaxHistory != 10 || cfg.Autosave.Path != ":memory:" || !cfg.Autosave.Enabled {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].When != "layer.width > 500" {
		t.Fatalf("unexpected rules %+v", cfg.Rules)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"negative max":   "max_history = -1\n",
		"bad timeout":    "[autosave]\ntimeout = \"soon\"\n",
		"missing action": "[[rules]]\nwhen = \"true\"\n",
		"bad toml":       "max_history = \n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, "config.toml", body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRuleSetWithoutRules(t *testing.T) {
	set, err := Default().RuleSet()
	if err != nil || set != nil {
		t.Fatalf("expected nil rule set, got %v err=%v", set, err)
	}
}

func TestRuleSetReportsCompileErrors(t *testing.T) {
	cfg := Default()
	cfg.Rules = []rules.Rule{{Name: "broken", Action: "edit", When: "layer.("}}

	if _, err := cfg.RuleSet(); err == nil || !strings.Contains(err.Error(), "compile rules") {
		t.Fatalf("expected compile error, got %v", err)
	}
}
