package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// Config represents the hitchain configuration
type Config struct {
	File            string            `json:"file,omitempty"`    // Test suite path
	Host            string            `json:"host,omitempty"`    // Host of the service under test
	Timeout         int               `json:"timeout,omitempty"` // milliseconds, 0 waits forever
	FollowRedirects *bool             `json:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"` // Default headers for all requests
	Rate            float64           `json:"rate,omitempty"`    // Requests per second
	WaitFor         *WaitForConfig    `json:"waitFor,omitempty"`
	History         string            `json:"history,omitempty"` // SQLite database recording runs
	EnvFile         string            `json:"envFile,omitempty"`
	EnvPrefix       string            `json:"envPrefix,omitempty"`
	Output          string            `json:"output,omitempty"`
	Verbose         *bool             `json:"verbose,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty"`
}

type WaitForConfig struct {
	Path     string `json:"path"`
	Status   int    `json:"status,omitempty"`
	Timeout  int    `json:"timeout,omitempty"`  // milliseconds
	Interval int    `json:"interval,omitempty"` // milliseconds
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".hitchain.config.json",
	"hitchain.config.json",
	".hitchainrc",
	".hitchainrc.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return config, nil
}

// Validate rejects values no run could use.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %d", c.Timeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects must not be negative: %d", c.MaxRedirects)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative: %v", c.Rate)
	}
	if c.Proxy != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Host == "" {
			return fmt.Errorf("proxy is not a URL: %q", c.Proxy)
		}
	}
	if c.WaitFor != nil {
		if c.WaitFor.Status != 0 && (c.WaitFor.Status < 100 || c.WaitFor.Status > 599) {
			return fmt.Errorf("waitFor.status is not an HTTP status: %d", c.WaitFor.Status)
		}
		if c.WaitFor.Timeout < 0 || c.WaitFor.Interval < 0 {
			return fmt.Errorf("waitFor timeout and interval must not be negative")
		}
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.File != "" {
		result.File = other.File
	}
	if other.Host != "" {
		result.Host = other.Host
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.WaitFor != nil {
		result.WaitFor = other.WaitFor
	}
	if other.History != "" {
		result.History = other.History
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.EnvPrefix != "" {
		result.EnvPrefix = other.EnvPrefix
	}
	if other.Output != "" {
		result.Output = other.Output
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	return &result
}

// RunnerConfig converts the file settings into runner settings.
func (c *Config) RunnerConfig() *runner.Config {
	rc := &runner.Config{
		Timeout:        time.Duration(c.Timeout) * time.Millisecond,
		FollowRedirect: c.GetFollowRedirects(),
		MaxRedirects:   c.MaxRedirects,
		Insecure:       !c.GetValidateSSL(),
		Proxy:          c.Proxy,
		DefaultHeaders: c.Headers,
		Rate:           c.Rate,
	}
	if c.WaitFor != nil && c.WaitFor.Path != "" {
		rc.WaitFor = &runner.WaitFor{
			Path:     c.WaitFor.Path,
			Status:   c.WaitFor.Status,
			Timeout:  time.Duration(c.WaitFor.Timeout) * time.Millisecond,
			Interval: time.Duration(c.WaitFor.Interval) * time.Millisecond,
		}
	}
	return rc
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
