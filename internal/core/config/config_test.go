package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rosewatch.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("expected default debounce 500ms, got %v", cfg.Watch.Debounce)
	}
	if len(cfg.WatchPaths) != 1 || cfg.WatchPaths[0] != "." {
		t.Errorf("expected default watch path [.], got %v", cfg.WatchPaths)
	}
	if cfg.Graph.MaxDepth != 3 {
		t.Errorf("expected default graph max_depth 3, got %d", cfg.Graph.MaxDepth)
	}
	if cfg.DB.ProjectKey != "default" {
		t.Errorf("expected default project key, got %q", cfg.DB.ProjectKey)
	}
	if !cfg.Alerts.TerminalEnabled() {
		t.Error("expected terminal alerts enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
watch_paths = ["model", "shared"]

[watch]
debounce = 250000000

[validation]
disabled = ["missing-description"]

[validation.severity]
"empty-type" = "error"

[graph]
max_depth = 5

[alerts]
beep = true
terminal = false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", cfg.Watch.Debounce)
	}
	if len(cfg.WatchPaths) != 2 {
		t.Errorf("expected two watch paths, got %v", cfg.WatchPaths)
	}
	if cfg.Graph.MaxDepth != 5 {
		t.Errorf("expected graph max_depth 5, got %d", cfg.Graph.MaxDepth)
	}
	if len(cfg.Validation.Disabled) != 1 || cfg.Validation.Disabled[0] != "missing-description" {
		t.Errorf("unexpected disabled rules: %v", cfg.Validation.Disabled)
	}
	if cfg.Validation.Severity["empty-type"] != "error" {
		t.Errorf("unexpected severity override: %v", cfg.Validation.Severity)
	}
	if !cfg.Alerts.Beep {
		t.Error("expected beep alerts enabled")
	}
	if cfg.Alerts.TerminalEnabled() {
		t.Error("expected terminal alerts disabled")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad version", "version = 9"},
		{"bad severity", "[validation.severity]\n\"empty-type\" = \"catastrophic\""},
		{"bad depth", "[graph]\nmax_depth = 0"},
		{"empty disabled rule", "[validation]\ndisabled = [\"\"]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
