// Package platform wires the CKAN toolkits, prompts and resource
// templates into one MCP server.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/mcp-ckan/pkg/middleware"
	"github.com/txn2/mcp-ckan/pkg/quality"
	"github.com/txn2/mcp-ckan/pkg/registry"
)

// Defaults applied by LoadConfig and New.
const (
	DefaultName             = "mcp-ckan"
	DefaultVersion          = "1.0.0"
	DefaultTransport        = "stdio"
	DefaultAddress          = ":8080"
	DefaultLogLevel         = "info"
	DefaultTimeout          = 30 * time.Second
	DefaultMaxResponseBytes = 10 << 20
	DefaultMetricsPath      = "/metrics"
	DefaultInstance         = "default"
)

// Config holds the complete server configuration.
type Config struct {
	Server        ServerConfig                          `yaml:"server"`
	Logging       LoggingConfig                         `yaml:"logging"`
	HTTP          HTTPConfig                            `yaml:"http"`
	Portals       PortalsConfig                         `yaml:"portals"`
	Quality       QualityConfig                         `yaml:"quality"`
	Toolkits      map[string]registry.ToolkitKindConfig `yaml:"toolkits"`
	Resources     ResourcesConfig                       `yaml:"resources"`
	Metrics       MetricsConfig                         `yaml:"metrics"`
	ClientLogging middleware.ClientLoggingConfig        `yaml:"client_logging"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name              string         `yaml:"name"`
	Version           string         `yaml:"version"`
	Description       string         `yaml:"description"`
	Tags              []string       `yaml:"tags"`               // Discovery keywords for routing
	AgentInstructions string         `yaml:"agent_instructions"` // Inline operational guidance for AI agents
	Prompts           []PromptConfig `yaml:"prompts"`            // Static prompts added next to the built-in ones
	Transport         string         `yaml:"transport"`          // "stdio", "http"
	Address           string         `yaml:"address"`
	ShutdownTimeout   time.Duration  `yaml:"shutdown_timeout"`
}

// PromptConfig defines a static MCP prompt.
type PromptConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Content     string `yaml:"content"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// HTTPConfig holds the outbound HTTP settings shared by all CKAN toolkit
// instances. Instance settings take precedence.
type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`

	// RequestsPerSecond paces calls to CKAN portals. Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// PortalsConfig selects the portal table.
type PortalsConfig struct {
	// File replaces the embedded portal table when set.
	File string `yaml:"file"`
}

// QualityConfig holds the settings shared by all quality toolkit instances.
type QualityConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedServers []string      `yaml:"allowed_servers"`
}

// ResourcesConfig toggles the ckan:// resource templates.
type ResourcesConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig configures the Prometheus endpoint on the HTTP transport.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding ${VAR} references and
// applying defaults.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	cfg := Config{
		Resources: ResourcesConfig{Enabled: true},
		Metrics:   MetricsConfig{Enabled: true},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given: one
// CKAN and one quality toolkit, both named "default".
func DefaultConfig() *Config {
	cfg := &Config{
		Resources: ResourcesConfig{Enabled: true},
		Metrics:   MetricsConfig{Enabled: true},
	}
	applyDefaults(cfg)
	return cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = DefaultName
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = DefaultTransport
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddress
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = DefaultTimeout
	}
	if cfg.HTTP.MaxResponseBytes == 0 {
		cfg.HTTP.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.Quality.BaseURL == "" {
		cfg.Quality.BaseURL = quality.DefaultBaseURL
	}
	if cfg.Quality.Timeout == 0 {
		cfg.Quality.Timeout = cfg.HTTP.Timeout
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if len(cfg.Toolkits) == 0 {
		cfg.Toolkits = map[string]registry.ToolkitKindConfig{
			registry.KindCKAN:    defaultKind(),
			registry.KindQuality: defaultKind(),
		}
	}
}

func defaultKind() registry.ToolkitKindConfig {
	return registry.ToolkitKindConfig{
		Enabled:   true,
		Default:   DefaultInstance,
		Instances: map[string]map[string]any{DefaultInstance: {}},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Sprintf("server.transport must be stdio or http, got %q", c.Server.Transport))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not a known level", c.Logging.Level))
	}

	if c.HTTP.MaxResponseBytes < 0 {
		errs = append(errs, "http.max_response_bytes must be positive")
	}
	if c.HTTP.RequestsPerSecond < 0 || c.HTTP.Burst < 0 {
		errs = append(errs, "http.requests_per_second and http.burst must not be negative")
	}
	if c.HTTP.Timeout < 0 || c.Quality.Timeout < 0 {
		errs = append(errs, "timeouts must not be negative")
	}

	if _, err := quality.NewAllowList(c.Quality.AllowedServers); err != nil {
		errs = append(errs, "quality.allowed_servers: "+err.Error())
	}

	for kind := range c.Toolkits {
		if kind != registry.KindCKAN && kind != registry.KindQuality {
			errs = append(errs, fmt.Sprintf("toolkits.%s: unknown toolkit kind", kind))
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	for i, p := range c.Server.Prompts {
		if p.Name == "" || p.Content == "" {
			errs = append(errs, fmt.Sprintf("server.prompts[%d]: name and content are required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// toolkitConfigs returns the toolkit loader configuration with the shared
// http and quality sections folded in as kind-level defaults.
func (c *Config) toolkitConfigs() registry.LoaderConfig {
	shared := map[string]map[string]any{
		registry.KindCKAN: {
			"timeout":             c.HTTP.Timeout,
			"user_agent":          c.HTTP.UserAgent,
			"max_response_bytes":  c.HTTP.MaxResponseBytes,
			"requests_per_second": c.HTTP.RequestsPerSecond,
			"burst":               c.HTTP.Burst,
		},
		registry.KindQuality: {
			"base_url":            c.Quality.BaseURL,
			"timeout":             c.Quality.Timeout,
			"user_agent":          c.HTTP.UserAgent,
			"max_response_bytes":  c.HTTP.MaxResponseBytes,
			"requests_per_second": c.HTTP.RequestsPerSecond,
			"burst":               c.HTTP.Burst,
			"allowed_servers":     c.Quality.AllowedServers,
		},
	}

	out := registry.LoaderConfig{Toolkits: make(map[string]registry.ToolkitKindConfig, len(c.Toolkits))}
	for kind, kindCfg := range c.Toolkits {
		merged := make(map[string]any, len(shared[kind])+len(kindCfg.Config))
		for k, v := range shared[kind] {
			merged[k] = v
		}
		for k, v := range kindCfg.Config {
			merged[k] = v
		}
		kindCfg.Config = merged
		out.Toolkits[kind] = kindCfg
	}
	return out
}
