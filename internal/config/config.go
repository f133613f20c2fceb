// Package config loads taskflow client configuration from JSON files
// and environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// APIConfig points the client at the TaskFlow backend.
type APIConfig struct {
	BaseURL   string `json:"base_url"`
	TimeoutMS int    `json:"timeout_ms"`
}

// ChatConfig tunes the AI assistant panel.
type ChatConfig struct {
	// RefreshDelayMS is how long to wait after a task-mutating tool
	// call before re-fetching the task list. The write has already
	// happened server-side; the delay only absorbs propagation lag.
	RefreshDelayMS int `json:"refresh_delay_ms"`
}

// StorageConfig locates local client state (token, transcripts).
type StorageConfig struct {
	BaseDir string `json:"base_dir"`
}

type Config struct {
	API     APIConfig     `json:"api"`
	Chat    ChatConfig    `json:"chat"`
	Storage StorageConfig `json:"storage"`
}

type fileAPIConfig struct {
	BaseURL   *string `json:"base_url"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type fileChatConfig struct {
	RefreshDelayMS *int `json:"refresh_delay_ms"`
}

type fileStorageConfig struct {
	BaseDir *string `json:"base_dir"`
}

type fileConfig struct {
	API     *fileAPIConfig     `json:"api"`
	Chat    *fileChatConfig    `json:"chat"`
	Storage *fileStorageConfig `json:"storage"`
}

func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000",
			TimeoutMS: 30000,
		},
		Chat: ChatConfig{
			RefreshDelayMS: 500,
		},
		Storage: StorageConfig{
			BaseDir: "~/.taskflow",
		},
	}
}

// Load builds the effective config: defaults, then the global file,
// then the project file (or the explicit path), then env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("TASKFLOW_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	return applyEnv(cfg)
}

// HomeDir resolves the storage base dir to an absolute path.
func (c Config) HomeDir() (string, error) {
	return expandPath(c.Storage.BaseDir)
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".taskflow", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"taskflow.config.json",
		".taskflow/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	cleaned := stripJSONComments(data)
	var fc fileConfig
	if err := json.Unmarshal(cleaned, &fc); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fc)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.API != nil {
		if fc.API.BaseURL != nil && strings.TrimSpace(*fc.API.BaseURL) != "" {
			cfg.API.BaseURL = *fc.API.BaseURL
		}
		if fc.API.TimeoutMS != nil && *fc.API.TimeoutMS > 0 {
			cfg.API.TimeoutMS = *fc.API.TimeoutMS
		}
	}
	if fc.Chat != nil {
		if fc.Chat.RefreshDelayMS != nil && *fc.Chat.RefreshDelayMS > 0 {
			cfg.Chat.RefreshDelayMS = *fc.Chat.RefreshDelayMS
		}
	}
	if fc.Storage != nil {
		if fc.Storage.BaseDir != nil && strings.TrimSpace(*fc.Storage.BaseDir) != "" {
			cfg.Storage.BaseDir = *fc.Storage.BaseDir
		}
	}
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("TASKFLOW_API_URL")); v != "" {
		cfg.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKFLOW_API_TIMEOUT_MS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid TASKFLOW_API_TIMEOUT_MS: %q", v)
		}
		cfg.API.TimeoutMS = n
	}
	if v := strings.TrimSpace(os.Getenv("TASKFLOW_REFRESH_DELAY_MS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid TASKFLOW_REFRESH_DELAY_MS: %q", v)
		}
		cfg.Chat.RefreshDelayMS = n
	}
	if v := strings.TrimSpace(os.Getenv("TASKFLOW_HOME")); v != "" {
		cfg.Storage.BaseDir = v
	}

	return cfg, normalize(&cfg)
}

func normalize(cfg *Config) error {
	def := Default()
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = def.API.BaseURL
	}
	if cfg.API.TimeoutMS <= 0 {
		cfg.API.TimeoutMS = def.API.TimeoutMS
	}
	if cfg.Chat.RefreshDelayMS <= 0 {
		cfg.Chat.RefreshDelayMS = def.Chat.RefreshDelayMS
	}
	if strings.TrimSpace(cfg.Storage.BaseDir) == "" {
		cfg.Storage.BaseDir = def.Storage.BaseDir
	}
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
