package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// DataDir is the local note corpus mirroring the device tree.
	DataDir string `toml:"data_dir"`
	// ImagesDir holds rasterized page images.
	ImagesDir string `toml:"images_dir"`
	// NotesDir holds extracted and annotated plain-text notes.
	NotesDir string `toml:"notes_dir"`
	// StagingDir is the root under which per-run download staging
	// directories are created and destroyed.
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// Device contains the networked note device's address and walk settings.
type Device struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Root           string   `toml:"root"`
	IgnoreDirs     []string `toml:"ignore_dirs"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Models selects which generation model handles each remote-call stage.
type Models struct {
	Extraction string `toml:"extraction"`
	Metadata   string `toml:"metadata"`
}

// Ollama describes the locally hosted model endpoint. Models listed here are
// exempt from rate-limit pacing.
type Ollama struct {
	BaseURL string   `toml:"base_url"`
	Models  []string `toml:"models"`
}

// Remote describes the externally hosted chat-completions endpoint used for
// any model not served by Ollama. Remote models are paced between calls.
type Remote struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// Concurrent marks the service as tolerating parallel requests. Off by
	// default; most per-account rate limits forbid it.
	Concurrent bool `toml:"concurrent"`
}

// Gateway contains retry and pacing policy for generation-service calls, plus
// worker-pool sizing for the batch stages.
type Gateway struct {
	MaxRetries         int `toml:"max_retries"`
	RetryDelaySeconds  int `toml:"retry_delay_seconds"`
	PacingDelaySeconds int `toml:"pacing_delay_seconds"`
	ConvertWorkers     int `toml:"convert_workers"`
	RemoteCallWorkers  int `toml:"remote_call_workers"`
}

// Render configures the external rasterization tool.
type Render struct {
	Tool           string `toml:"tool"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Watch configures the availability monitor loop.
type Watch struct {
	CheckIntervalSeconds int `toml:"check_interval_seconds"`
	SyncDelayMinutes     int `toml:"sync_delay_minutes"`
	ProbeTimeoutSeconds  int `toml:"probe_timeout_seconds"`
}

// Vault configures the optional markdown vault export. Empty Dir disables it.
type Vault struct {
	Dir    string `toml:"dir"`
	Folder string `toml:"folder"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for quill.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Device  Device  `toml:"device"`
	Models  Models  `toml:"models"`
	Ollama  Ollama  `toml:"ollama"`
	Remote  Remote  `toml:"remote"`
	Gateway Gateway `toml:"gateway"`
	Render  Render  `toml:"render"`
	Watch   Watch   `toml:"watch"`
	Vault   Vault   `toml:"vault"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/quill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("quill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ImagesDir, c.Paths.NotesDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DeviceBaseURL returns the device's HTTP endpoint.
func (c *Config) DeviceBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Device.Host, c.Device.Port)
}

// DeviceTimeout returns the per-request timeout for device HTTP calls.
func (c *Config) DeviceTimeout() time.Duration {
	return time.Duration(c.Device.TimeoutSeconds) * time.Second
}

// RetryDelay returns the fixed delay between generation retry attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Gateway.RetryDelaySeconds) * time.Second
}

// PacingDelay returns the pre-call delay applied to remote generation calls.
func (c *Config) PacingDelay() time.Duration {
	return time.Duration(c.Gateway.PacingDelaySeconds) * time.Second
}

// CheckInterval returns the watch loop's poll interval.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Watch.CheckIntervalSeconds) * time.Second
}

// SyncDelay returns the minimum interval between completed syncs.
func (c *Config) SyncDelay() time.Duration {
	return time.Duration(c.Watch.SyncDelayMinutes) * time.Minute
}

// ProbeTimeout returns the reachability probe's connection timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Watch.ProbeTimeoutSeconds) * time.Second
}

// RemoteWorkers returns the worker count for stages that call generation
// services. Fan-out beyond one worker requires the remote service to be
// marked concurrent; per-account rate limits make sequential the safe
// default.
func (c *Config) RemoteWorkers() int {
	workers := c.Gateway.RemoteCallWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > 1 && !c.Remote.Concurrent {
		return 1
	}
	return workers
}

// LocalModel reports whether the identifier is served by the Ollama endpoint
// and therefore exempt from pacing.
func (c *Config) LocalModel(id string) bool {
	id = strings.TrimSpace(id)
	for _, m := range c.Ollama.Models {
		if strings.TrimSpace(m) == id {
			return true
		}
	}
	return false
}

func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Paths.DataDir, &c.Paths.ImagesDir, &c.Paths.NotesDir,
		&c.Paths.StagingDir, &c.Paths.LogDir, &c.Vault.Dir,
	} {
		if strings.TrimSpace(*field) == "" {
			*field = ""
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Device.Host = strings.TrimSpace(c.Device.Host)
	c.Device.Root = "/" + strings.Trim(strings.TrimSpace(c.Device.Root), "/")
	c.Models.Extraction = strings.TrimSpace(c.Models.Extraction)
	c.Models.Metadata = strings.TrimSpace(c.Models.Metadata)
	c.Ollama.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ollama.BaseURL), "/")
	c.Remote.BaseURL = strings.TrimSpace(c.Remote.BaseURL)
	c.Remote.APIKey = strings.TrimSpace(c.Remote.APIKey)
	c.Vault.Folder = strings.TrimSpace(c.Vault.Folder)

	cleaned := make([]string, 0, len(c.Device.IgnoreDirs))
	for _, dir := range c.Device.IgnoreDirs {
		if trimmed := strings.TrimSpace(dir); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	c.Device.IgnoreDirs = cleaned
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
