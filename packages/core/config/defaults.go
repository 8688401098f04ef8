package config

import (
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		File:            suite.DefaultPath,
		Timeout:         0, // no limit
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    http.DefaultMaxRedirects,
		ValidateSSL:     BoolPtr(true),
		Output:          "console",
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.File == defaults.File &&
		c.Host == defaults.Host &&
		c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		c.Rate == defaults.Rate &&
		c.WaitFor == nil &&
		c.History == defaults.History &&
		c.EnvFile == defaults.EnvFile &&
		c.EnvPrefix == defaults.EnvPrefix &&
		c.Output == defaults.Output &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
