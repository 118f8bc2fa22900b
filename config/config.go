// Package config provides YAML configuration parsing for serverwatch.
//
// This package lets serverwatch run as a standalone binary with a
// configuration file, as an alternative to the programmatic API.
//
// Example configuration:
//
//	title: CS2 Servers
//	port: 8080
//	poll_interval: 3s
//	source: ${STATUS_SOURCE:-http://localhost:8000}
//	static_dir: ./static
//	player_filter: legacy
//
//	servers:
//	  - meow
//	  - meow2
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort         = 8080
	defaultPollInterval = 3 * time.Second
	defaultStaticDir    = "static"

	// minPollInterval keeps a typo from hammering the upstream.
	minPollInterval = 1 * time.Second
)

// Config is the root configuration structure.
//
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the page title. Defaults to "Server Status".
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between polling cycles. Defaults to 3s.
	PollInterval Duration `yaml:"poll_interval"`

	// RequestTimeout bounds each upstream request. Zero means no timeout.
	RequestTimeout Duration `yaml:"request_timeout"`

	// Source is the upstream base URL; status is read from {source}/data/{id}.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Source string `yaml:"source"`

	// StaticDir is served under /static/. Map images live in {dir}/maps.
	// Supports environment variable substitution. Defaults to "static".
	StaticDir string `yaml:"static_dir"`

	// PlayerFilter selects which players count as online: "legacy"
	// (default) or "connected".
	PlayerFilter string `yaml:"player_filter"`

	// Servers lists the server ids to poll, in page order.
	Servers []string `yaml:"servers"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1: variable name
// Group 2: the ":-default" part, present when a default was given
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
// An unset variable without a default is an error.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in source and static_dir. Defaults are
// applied for port, poll_interval and static_dir before validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = defaultStaticDir
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	if c.RequestTimeout.Duration() < 0 {
		return fmt.Errorf("request_timeout cannot be negative, got %s", c.RequestTimeout.Duration())
	}

	if c.Source == "" {
		return errors.New("source is required")
	}
	expanded, err := expandEnvVars(c.Source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	c.Source = expanded

	parsedURL, err := url.Parse(c.Source)
	if err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("source must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("source scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("source must have a host")
	}

	staticDir, err := expandEnvVars(c.StaticDir)
	if err != nil {
		return fmt.Errorf("static_dir: %w", err)
	}
	c.StaticDir = staticDir

	switch c.PlayerFilter {
	case "", "legacy", "connected":
	default:
		return fmt.Errorf("player_filter must be 'legacy' or 'connected', got %q", c.PlayerFilter)
	}

	if len(c.Servers) == 0 {
		return errors.New("at least one server must be defined")
	}
	seen := make(map[string]struct{}, len(c.Servers))
	for i, id := range c.Servers {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("servers[%d]: id is required", i)
		}
		if _, exists := seen[id]; exists {
			return fmt.Errorf("servers[%d]: duplicate server id %q", i, id)
		}
		seen[id] = struct{}{}
		c.Servers[i] = id
	}

	return nil
}
