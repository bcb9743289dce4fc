package quality

import (
	"fmt"
	"time"

	"github.com/txn2/mcp-ckan/pkg/quality"
)

const defaultTimeout = 30 * time.Second

// Config holds quality toolkit configuration.
type Config struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
	RequestsPerSec   float64       `yaml:"requests_per_second"`
	Burst            int           `yaml:"burst"`
	AllowedServers   []string      `yaml:"allowed_servers"`
	Description      string        `yaml:"description"`
}

// ParseConfig parses a quality toolkit configuration from a map.
func ParseConfig(cfg map[string]any) (Config, error) {
	c := Config{
		BaseURL:        quality.DefaultBaseURL,
		Timeout:        defaultTimeout,
		AllowedServers: append([]string(nil), quality.DefaultAllowedServers...),
	}

	if v, ok := cfg["base_url"].(string); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := cfg["user_agent"].(string); ok {
		c.UserAgent = v
	}
	if v, ok := cfg["description"].(string); ok {
		c.Description = v
	}

	switch v := cfg["max_response_bytes"].(type) {
	case int:
		c.MaxResponseBytes = int64(v)
	case int64:
		c.MaxResponseBytes = v
	case float64:
		c.MaxResponseBytes = int64(v)
	}

	switch v := cfg["requests_per_second"].(type) {
	case float64:
		c.RequestsPerSec = v
	case int:
		c.RequestsPerSec = float64(v)
	}
	if c.RequestsPerSec < 0 {
		return c, fmt.Errorf("requests_per_second must not be negative")
	}
	if v, ok := cfg["burst"].(int); ok {
		c.Burst = v
	}

	switch v := cfg["timeout"].(type) {
	case time.Duration:
		c.Timeout = v
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("invalid timeout: parsing duration %q: %w", v, err)
		}
		c.Timeout = d
	case int:
		c.Timeout = time.Duration(v) * time.Second
	case float64:
		c.Timeout = time.Duration(v) * time.Second
	}

	switch raw := cfg["allowed_servers"].(type) {
	case []string:
		if len(raw) > 0 {
			c.AllowedServers = append([]string(nil), raw...)
		}
	case []any:
		if len(raw) > 0 {
			c.AllowedServers = make([]string, 0, len(raw))
			for i, v := range raw {
				s, ok := v.(string)
				if !ok {
					return c, fmt.Errorf("allowed_servers[%d] must be a string", i)
				}
				c.AllowedServers = append(c.AllowedServers, s)
			}
		}
	}

	if _, err := quality.NewAllowList(c.AllowedServers); err != nil {
		return c, err
	}
	return c, nil
}
