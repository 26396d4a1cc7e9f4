package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const appName = "mbsuggest"

// Config contains the program configuration
type Config struct {
	MusicBrainzURL string `yaml:"musicbrainz_url"`
	UserAgent      string `yaml:"user_agent"`
	SearchLimit    int    `yaml:"search_limit"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Verbose        bool   `yaml:"verbose"`
	LibraryDir     string `yaml:"library_dir"`
	ListenPort     int    `yaml:"listen_port"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MusicBrainzURL: "https://musicbrainz.org/ws/2",
		UserAgent:      "mbsuggest/1.0 ( https://github.com/mbsuggest/mbsuggest )",
		SearchLimit:    25,
		TimeoutSeconds: 10,
		Verbose:        false,
		LibraryDir:     filepath.Join(homeDir(), "Music"),
		ListenPort:     8080,
	}
}

// Timeout returns the remote request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.LibraryDir = ExpandHome(cfg.LibraryDir)

	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	for _, path := range configLocations() {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func configLocations() []string {
	home := homeDir()
	return []string{
		"./mbsuggest.yaml",
		"./mbsuggest.yml",
		filepath.Join(xdg.ConfigHome, appName, "config.yaml"),
		filepath.Join(xdg.ConfigHome, appName, "config.yml"),
		filepath.Join(home, ".mbsuggest.yaml"),
		filepath.Join(home, ".mbsuggest.yml"),
	}
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(xdg.DataHome, appName, "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MusicBrainzURL == "" {
		return fmt.Errorf("musicbrainz_url cannot be empty")
	}
	if !strings.HasPrefix(c.MusicBrainzURL, "http://") && !strings.HasPrefix(c.MusicBrainzURL, "https://") {
		return fmt.Errorf("musicbrainz_url must start with http:// or https://")
	}

	if strings.TrimSpace(c.UserAgent) == "" {
		return fmt.Errorf("user_agent cannot be empty (MusicBrainz rejects anonymous clients)")
	}

	if c.SearchLimit < 1 || c.SearchLimit > 100 {
		return fmt.Errorf("search_limit must be between 1 and 100, got %d", c.SearchLimit)
	}

	if c.TimeoutSeconds < 1 || c.TimeoutSeconds > 120 {
		return fmt.Errorf("timeout_seconds must be between 1 and 120, got %d", c.TimeoutSeconds)
	}

	if c.LibraryDir == "" {
		return fmt.Errorf("library_dir cannot be empty")
	}

	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port must be between 1 and 65535, got %d", c.ListenPort)
	}

	return nil
}
