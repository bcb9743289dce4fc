package platform

import (
	"log/slog"
	"regexp"
	"strings"
)

// knownToolPrefixes identify tool-name-like tokens in agent_instructions
// text, e.g. "ckan_package_search" or "platform_info".
var knownToolPrefixes = []string{
	"ckan_",
	"platform_",
}

// toolTokenPattern matches word-boundary tokens that look like tool names.
var toolTokenPattern = regexp.MustCompile(`\b([a-z][a-z0-9]*(?:_[a-z0-9]+)+)\b`)

// validateAgentInstructions logs a warning for every tool-like token in
// agent_instructions that names no registered tool.
func (p *Platform) validateAgentInstructions() {
	for _, token := range p.unknownToolReferences() {
		slog.Warn("agent_instructions references unrecognized tool",
			"token", token,
			"hint", "verify the tool name exists or remove the stale reference",
		)
	}
}

// unknownToolReferences returns the distinct unknown tool tokens in
// agent_instructions, in order of appearance.
func (p *Platform) unknownToolReferences() []string {
	instructions := p.config.Server.AgentInstructions
	if instructions == "" {
		return nil
	}

	known := make(map[string]struct{})
	for _, t := range p.toolkitRegistry.AllTools() {
		known[t] = struct{}{}
	}
	known[infoToolName] = struct{}{}

	var unknown []string
	for _, token := range toolTokenPattern.FindAllString(instructions, -1) {
		if !hasKnownPrefix(token) {
			continue
		}
		if _, ok := known[token]; ok {
			continue
		}
		known[token] = struct{}{}
		unknown = append(unknown, token)
	}
	return unknown
}

// hasKnownPrefix reports whether the token starts with a known tool prefix.
func hasKnownPrefix(token string) bool {
	for _, prefix := range knownToolPrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}
