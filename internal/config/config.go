// Package config loads the service configuration.
//
// Load applies defaults, then an optional YAML file, then environment
// overrides (PORT and the variable named by github.token_env), then validates.
// A missing GitHub token is not a load error: the HTTP layer reports it on
// every analysis request instead.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the configuration.
const (
	DefaultPort                  = 8000
	DefaultTokenEnv              = "GITHUB_TOKEN"
	DefaultBaseURL               = "https://api.github.com/"
	DefaultGraphQLURL            = "https://api.github.com/graphql"
	DefaultAPIVersion            = "2022-11-28"
	DefaultTimeout               = 30 * time.Second
	DefaultMaxConcurrentRequests = 10
	DefaultActiveWindow          = 30 * 24 * time.Hour
)

// Config holds the process-wide configuration, built once at start.
type Config struct {
	// Port is the HTTP listen port (default 8000).
	Port int `yaml:"port"`

	GitHub   GitHubConfig   `yaml:"github"`
	CORS     CORSConfig     `yaml:"cors"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// GitHubConfig configures the upstream GitHub API client.
type GitHubConfig struct {
	// TokenEnv is the name of the environment variable holding the API token.
	TokenEnv string `yaml:"token_env"`

	// Token is resolved from TokenEnv and never read from the file.
	Token string `yaml:"-"`

	BaseURL    string `yaml:"base_url"`
	GraphQLURL string `yaml:"graphql_url"`

	// APIVersion is sent as X-GitHub-Api-Version on every request.
	APIVersion string `yaml:"api_version"`

	// Timeout bounds each upstream HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// MaxConcurrentRequests bounds the in-flight upstream calls of one fan-out.
	MaxConcurrentRequests int `yaml:"max_concurrent_requests"`
}

// HasToken reports whether an API token was resolved.
func (g GitHubConfig) HasToken() bool {
	return g.Token != ""
}

// CORSConfig controls the CORS headers sent on every route.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AnalysisConfig tunes the aggregate analysis.
type AnalysisConfig struct {
	// ActiveWindow is how recently a repository must have been updated to count as active.
	ActiveWindow time.Duration `yaml:"active_window"`
}

// Load builds the configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Port: DefaultPort,
		GitHub: GitHubConfig{
			TokenEnv:              DefaultTokenEnv,
			BaseURL:               DefaultBaseURL,
			GraphQLURL:            DefaultGraphQLURL,
			APIVersion:            DefaultAPIVersion,
			Timeout:               DefaultTimeout,
			MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Analysis: AnalysisConfig{
			ActiveWindow: DefaultActiveWindow,
		},
	}
}

func applyEnv(cfg *Config) error {
	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("PORT %q is not a number", portStr)
		}
		cfg.Port = port
	}
	if cfg.GitHub.TokenEnv != "" {
		cfg.GitHub.Token = os.Getenv(cfg.GitHub.TokenEnv)
	}
	return nil
}

// Validate checks structural constraints on the configuration. Callers that
// override fields after Load must validate again.
func (cfg *Config) Validate() error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (cfg *Config) validate() error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range [1, 65535]", cfg.Port)
	}
	if cfg.GitHub.BaseURL == "" {
		return fmt.Errorf("github.base_url must not be empty")
	}
	if cfg.GitHub.Timeout < 0 {
		return fmt.Errorf("github.timeout must not be negative")
	}
	if cfg.GitHub.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("github.max_concurrent_requests must be positive")
	}
	if cfg.Analysis.ActiveWindow <= 0 {
		return fmt.Errorf("analysis.active_window must be positive")
	}
	return nil
}
