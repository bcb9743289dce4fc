package quality

import (
	"fmt"
	"regexp"
)

// DefaultAllowedServers lists the portals whose datasets are harvested by
// data.europa.eu and therefore have MQA reports.
var DefaultAllowedServers = []string{`^https?://(www\.)?dati\.gov\.it`}

// AllowList decides which CKAN servers may be queried for MQA reports.
// Patterns match case-insensitively.
type AllowList struct {
	patterns []*regexp.Regexp
}

// NewAllowList compiles patterns. An empty list falls back to
// DefaultAllowedServers.
func NewAllowList(patterns []string) (*AllowList, error) {
	if len(patterns) == 0 {
		patterns = DefaultAllowedServers
	}
	al := &AllowList{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed server pattern %q: %w", p, err)
		}
		al.patterns = append(al.patterns, re)
	}
	return al, nil
}

// Allows reports whether server matches any pattern.
func (a *AllowList) Allows(server string) bool {
	for _, re := range a.patterns {
		if re.MatchString(server) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (a *AllowList) Patterns() []string {
	out := make([]string, len(a.patterns))
	for i, re := range a.patterns {
		out[i] = re.String()[len("(?i)"):]
	}
	return out
}
