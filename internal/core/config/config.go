package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "chnl"
)

const (
	DefaultBaseURL      = "https://webchnl.live"
	DefaultStreamOrigin = "stream.webchnl.live"
	DefaultViewerAPI    = "https://webchnl.live/api/viewercounts"
	DefaultTimeout      = 30
	DefaultServerPort   = 8080
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ConfigDir returns the standard config directory for chnl.
// Windows: %APPDATA%\chnl\
// macOS/Linux: ~/.config/chnl/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/chnl/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// BaseURL is the page listing the channels
	BaseURL string `yaml:"base_url,omitempty"`

	// StreamOrigin is the host serving HLS playlists, used by the fallback
	// patterns and the host heuristic
	StreamOrigin string `yaml:"stream_origin,omitempty"`

	// ViewerAPI is the viewer-count endpoint
	ViewerAPI string `yaml:"viewer_api,omitempty"`

	// Headless runs the browser without a window (default: true)
	Headless *bool `yaml:"headless,omitempty"`

	// Timeout in seconds applied to every wait-for-element
	Timeout int `yaml:"timeout,omitempty"`

	// BrowserPath overrides the Chrome binary (ROD_BROWSER takes precedence)
	BrowserPath string `yaml:"browser_path,omitempty"`

	// UserDataDir is the browser profile directory
	UserDataDir string `yaml:"user_data_dir,omitempty"`

	UserAgent string `yaml:"user_agent,omitempty"`

	// Selectors describe the target site's DOM
	Selectors Selectors `yaml:"selectors,omitempty"`

	// FallbackPatterns replace the built-in playlist patterns when non-empty.
	// "{origin}" is substituted with the quoted stream origin.
	FallbackPatterns []string `yaml:"fallback_patterns,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`

	// Server configuration for `chnl serve`
	Server ServerConfig `yaml:"server,omitempty"`
}

// Selectors are the CSS selectors for the pieces of the target page
type Selectors struct {
	Item   string `yaml:"item,omitempty"`
	Label  string `yaml:"label,omitempty"`
	Player string `yaml:"player,omitempty"`
	Media  string `yaml:"media,omitempty"`
	Source string `yaml:"source,omitempty"`
}

// DefaultSelectors matches the current markup of the channel site
func DefaultSelectors() Selectors {
	return Selectors{
		Item:   ".item",
		Label:  "h1[channel-name]",
		Player: ".player-container, .video-js, video",
		Media:  "video",
		Source: "source",
	}
}

// withDefaults fills empty selectors from DefaultSelectors
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Item == "" {
		s.Item = d.Item
	}
	if s.Label == "" {
		s.Label = d.Label
	}
	if s.Player == "" {
		s.Player = d.Player
	}
	if s.Media == "" {
		s.Media = d.Media
	}
	if s.Source == "" {
		s.Source = d.Source
	}
	return s
}

// LogConfig holds logging settings
type LogConfig struct {
	// Level is one of panic, fatal, error, warn, info, debug, trace
	Level string `yaml:"level,omitempty"`

	// JSON switches to the JSON formatter
	JSON bool `yaml:"json,omitempty"`

	// File appends logs to this path instead of stderr
	File string `yaml:"file,omitempty"`
}

// ServerConfig holds HTTP server settings for `chnl serve`
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8080)
	Port int `yaml:"port,omitempty"`

	// APIKey for authentication (optional, if set all requests must include X-API-Key header)
	APIKey string `yaml:"api_key,omitempty"`
}

// IsHeadless reports the headless setting, defaulting to true
func (c *Config) IsHeadless() bool {
	if c.Headless == nil {
		return true
	}
	return *c.Headless
}

// TimeoutDuration returns the per-wait timeout
func (c *Config) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// ResolvedSelectors returns the configured selectors with defaults filled in
func (c *Config) ResolvedSelectors() Selectors {
	return c.Selectors.withDefaults()
}

// ResolvedBrowserPath returns the Chrome binary to use, if any.
// ROD_BROWSER is set in Docker images and wins over the config file.
func (c *Config) ResolvedBrowserPath() string {
	if p := os.Getenv("ROD_BROWSER"); p != "" {
		return p
	}
	return c.BrowserPath
}

// ResolvedUserDataDir returns the browser profile directory
func (c *Config) ResolvedUserDataDir() string {
	if c.UserDataDir != "" {
		return c.UserDataDir
	}
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "chnl-browser")
	}
	return filepath.Join(dir, "browser")
}

// ServerPort returns the configured port or the default
func (c *Config) ServerPort() int {
	if c.Server.Port > 0 {
		return c.Server.Port
	}
	return DefaultServerPort
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	headless := true
	return &Config{
		BaseURL:      DefaultBaseURL,
		StreamOrigin: DefaultStreamOrigin,
		ViewerAPI:    DefaultViewerAPI,
		Headless:     &headless,
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		Selectors:    DefaultSelectors(),
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// applyDefaults fills fields left empty in a loaded file
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.StreamOrigin == "" {
		c.StreamOrigin = d.StreamOrigin
	}
	if c.ViewerAPI == "" {
		c.ViewerAPI = d.ViewerAPI
	}
	if c.Headless == nil {
		c.Headless = d.Headless
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	c.Selectors = c.Selectors.withDefaults()
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/chnl/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config from an explicit path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.UserDataDir = expandPath(cfg.UserDataDir)
	cfg.BrowserPath = expandPath(cfg.BrowserPath)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.applyDefaults()

	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes to ensure cross-platform compatibility
// for configuration files.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		// Only expand if it's explicitly "~", "~/", or "~\"
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to ~/.config/chnl/config.yml
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveFile(cfg, configPath)
}

// SaveFile writes the config to an explicit path
func SaveFile(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# chnl configuration file\n# Run 'chnl config init' to regenerate with defaults\n\n"
	content := header + string(data)

	return os.WriteFile(configPath, []byte(content), 0644)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// LoadOrDefault loads config if it exists, otherwise returns defaults
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}
	return cfg
}
