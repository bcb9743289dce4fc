package ckan

import (
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultMaxResponseBytes = 10 << 20
)

// Config holds CKAN toolkit configuration.
type Config struct {
	Timeout          time.Duration               `yaml:"timeout"`
	UserAgent        string                      `yaml:"user_agent"`
	MaxResponseBytes int64                       `yaml:"max_response_bytes"`
	RequestsPerSec   float64                     `yaml:"requests_per_second"`
	Burst            int                         `yaml:"burst"`
	Descriptions     map[string]string           `yaml:"descriptions"`
	Annotations      map[string]AnnotationConfig `yaml:"annotations"`
}

// AnnotationConfig holds tool annotation overrides from configuration.
type AnnotationConfig struct {
	ReadOnlyHint    *bool `yaml:"read_only_hint"`
	DestructiveHint *bool `yaml:"destructive_hint"`
	IdempotentHint  *bool `yaml:"idempotent_hint"`
	OpenWorldHint   *bool `yaml:"open_world_hint"`
}

// ParseConfig parses a CKAN toolkit configuration from a map.
func ParseConfig(cfg map[string]any) (Config, error) {
	c := Config{
		Timeout:          defaultTimeout,
		MaxResponseBytes: defaultMaxResponseBytes,
	}

	c.UserAgent = getString(cfg, "user_agent")
	c.MaxResponseBytes = getInt64(cfg, "max_response_bytes", c.MaxResponseBytes)
	if c.MaxResponseBytes <= 0 {
		return c, fmt.Errorf("max_response_bytes must be positive")
	}

	c.RequestsPerSec = getFloat(cfg, "requests_per_second")
	if c.RequestsPerSec < 0 {
		return c, fmt.Errorf("requests_per_second must not be negative")
	}
	c.Burst = int(getInt64(cfg, "burst", 1))

	if timeout, err := getDuration(cfg, "timeout"); err != nil {
		return c, fmt.Errorf("invalid timeout: %w", err)
	} else if timeout > 0 {
		c.Timeout = timeout
	}

	c.Descriptions = getStringMap(cfg, "descriptions")
	c.Annotations = getAnnotationsMap(cfg, "annotations")

	return c, nil
}

// apply overrides the defaults of a tool definition.
func (c Config) apply(tool *mcp.Tool) *mcp.Tool {
	if d, ok := c.Descriptions[tool.Name]; ok && d != "" {
		tool.Description = d
	}
	ann, ok := c.Annotations[tool.Name]
	if !ok {
		return tool
	}
	if tool.Annotations == nil {
		tool.Annotations = &mcp.ToolAnnotations{}
	}
	if ann.ReadOnlyHint != nil {
		tool.Annotations.ReadOnlyHint = *ann.ReadOnlyHint
	}
	if ann.DestructiveHint != nil {
		tool.Annotations.DestructiveHint = ann.DestructiveHint
	}
	if ann.IdempotentHint != nil {
		tool.Annotations.IdempotentHint = *ann.IdempotentHint
	}
	if ann.OpenWorldHint != nil {
		tool.Annotations.OpenWorldHint = ann.OpenWorldHint
	}
	return tool
}

// getAnnotationsMap extracts annotation overrides from a config map.
func getAnnotationsMap(cfg map[string]any, key string) map[string]AnnotationConfig { //nolint:unparam // consistent with getStringMap
	raw, ok := cfg[key].(map[string]any)
	if !ok {
		return nil
	}
	result := make(map[string]AnnotationConfig, len(raw))
	for k, v := range raw {
		toolCfg, ok := v.(map[string]any)
		if !ok {
			continue
		}
		ann := AnnotationConfig{}
		if b, ok := toolCfg["read_only_hint"].(bool); ok {
			ann.ReadOnlyHint = &b
		}
		if b, ok := toolCfg["destructive_hint"].(bool); ok {
			ann.DestructiveHint = &b
		}
		if b, ok := toolCfg["idempotent_hint"].(bool); ok {
			ann.IdempotentHint = &b
		}
		if b, ok := toolCfg["open_world_hint"].(bool); ok {
			ann.OpenWorldHint = &b
		}
		result[k] = ann
	}
	return result
}

// getString extracts a string value from a config map.
func getString(cfg map[string]any, key string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}

// getInt64 extracts an int64 value from a config map with a default.
func getInt64(cfg map[string]any, key string, defaultVal int64) int64 {
	switch v := cfg[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return defaultVal
}

// getFloat extracts a float64 value from a config map.
func getFloat(cfg map[string]any, key string) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// getStringMap extracts a map[string]string value from a config map.
func getStringMap(cfg map[string]any, key string) map[string]string { //nolint:unparam // consistent with getString
	raw, ok := cfg[key].(map[string]any)
	if !ok {
		return nil
	}
	result := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	return result
}

// getDuration extracts a duration value from a config map. Bare numbers
// are seconds.
func getDuration(cfg map[string]any, key string) (time.Duration, error) {
	switch v := cfg[key].(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parsing duration %q: %w", v, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v) * time.Second, nil
	}
	return 0, nil
}
