package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateEnv points HOME at a temp dir and clears every TASKFLOW_*
// override so tests see only what they set themselves.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"TASKFLOW_CONFIG_PATH",
		"TASKFLOW_API_URL",
		"TASKFLOW_API_TIMEOUT_MS",
		"TASKFLOW_REFRESH_DELAY_MS",
		"TASKFLOW_HOME",
	} {
		t.Setenv(key, "")
	}
	return home
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutMS != 30000 {
		t.Errorf("timeout = %d", cfg.API.TimeoutMS)
	}
	if cfg.Chat.RefreshDelayMS != 500 {
		t.Errorf("refresh delay = %d", cfg.Chat.RefreshDelayMS)
	}
	if cfg.Storage.BaseDir != "~/.taskflow" {
		t.Errorf("base dir = %q", cfg.Storage.BaseDir)
	}
}

func TestLoadGlobalFileWithComments(t *testing.T) {
	home := isolateEnv(t)
	writeConfig(t, filepath.Join(home, ".taskflow", "config.json"), `{
  // production backend
  "api": {"base_url": "https://tasks.example.com/"},
  "chat": {"refresh_delay_ms": 750}
}`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Trailing slash is trimmed during normalization.
	if cfg.API.BaseURL != "https://tasks.example.com" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.Chat.RefreshDelayMS != 750 {
		t.Errorf("refresh delay = %d", cfg.Chat.RefreshDelayMS)
	}
	// Untouched sections keep their defaults.
	if cfg.API.TimeoutMS != 30000 {
		t.Errorf("timeout = %d", cfg.API.TimeoutMS)
	}
}

func TestExplicitPathOverridesGlobal(t *testing.T) {
	home := isolateEnv(t)
	writeConfig(t, filepath.Join(home, ".taskflow", "config.json"),
		`{"api": {"base_url": "http://global:8000", "timeout_ms": 1000}}`)

	projectPath := filepath.Join(t.TempDir(), "taskflow.config.json")
	writeConfig(t, projectPath, `{"api": {"base_url": "http://project:8000"}}`)

	cfg, err := Load(projectPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://project:8000" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	// Fields the project file does not set fall through to the global
	// file, not to defaults.
	if cfg.API.TimeoutMS != 1000 {
		t.Errorf("timeout = %d", cfg.API.TimeoutMS)
	}
}

func TestEnvOverridesFiles(t *testing.T) {
	home := isolateEnv(t)
	writeConfig(t, filepath.Join(home, ".taskflow", "config.json"),
		`{"api": {"base_url": "http://file:8000"}}`)
	t.Setenv("TASKFLOW_API_URL", "http://env:9000")
	t.Setenv("TASKFLOW_REFRESH_DELAY_MS", "250")
	t.Setenv("TASKFLOW_HOME", "/tmp/taskflow-home")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://env:9000" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.Chat.RefreshDelayMS != 250 {
		t.Errorf("refresh delay = %d", cfg.Chat.RefreshDelayMS)
	}
	if cfg.Storage.BaseDir != "/tmp/taskflow-home" {
		t.Errorf("base dir = %q", cfg.Storage.BaseDir)
	}
}

func TestInvalidEnvValuesAreRejected(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-numeric timeout", key: "TASKFLOW_API_TIMEOUT_MS", value: "soon"},
		{name: "zero timeout", key: "TASKFLOW_API_TIMEOUT_MS", value: "0"},
		{name: "negative delay", key: "TASKFLOW_REFRESH_DELAY_MS", value: "-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(tc.key, tc.value)

			if _, err := Load(""); err == nil {
				t.Fatalf("Load accepted %s=%q", tc.key, tc.value)
			} else if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("error does not name the variable: %v", err)
			}
		})
	}
}

func TestMalformedConfigFileFailsLoad(t *testing.T) {
	home := isolateEnv(t)
	writeConfig(t, filepath.Join(home, ".taskflow", "config.json"), `{"api": `)

	if _, err := Load(""); err == nil {
		t.Fatal("Load accepted a malformed config file")
	}
}

func TestHomeDirExpandsTilde(t *testing.T) {
	home := isolateEnv(t)

	cfg := Default()
	dir, err := cfg.HomeDir()
	if err != nil {
		t.Fatalf("HomeDir: %v", err)
	}
	if dir != filepath.Join(home, ".taskflow") {
		t.Fatalf("HomeDir = %q", dir)
	}
}

func TestStripJSONComments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "line comment", input: "{\n// note\n\"a\": 1}", want: "{\n\n\"a\": 1}"},
		{name: "block comment", input: `{/* note */"a": 1}`, want: `{"a": 1}`},
		{name: "slashes inside string", input: `{"url": "http://x//y"}`, want: `{"url": "http://x//y"}`},
		{name: "escaped quote", input: `{"a": "say \"hi\" // ok"}`, want: `{"a": "say \"hi\" // ok"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(stripJSONComments([]byte(tc.input))); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
