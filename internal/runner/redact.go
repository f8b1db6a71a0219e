package runner

import (
	"regexp"
	"strings"
)

// secretPattern is a named regex for credential detection.
type secretPattern struct {
	name    string
	pattern *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{
		name:    "env",
		pattern: regexp.MustCompile(`(?i)(API_KEY|SECRET|TOKEN|PASSWORD|CREDENTIAL|PRIVATE[._]KEY)\s*[=:]\s*['"]?(\S{8,})`),
	},
	{
		name:    "bearer",
		pattern: regexp.MustCompile(`(?i)Bearer\s+([A-Za-z0-9\-._~+/]{20,}=*)`),
	},
	{
		name:    "openai",
		pattern: regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
	},
	{
		name:    "github",
		pattern: regexp.MustCompile(`gh[ps]_[A-Za-z0-9]{36}`),
	},
	{
		name:    "aws",
		pattern: regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	},
}

// Redact masks credentials in tool output before it is sent back to the
// model. Key names and token prefixes stay readable.
func Redact(input string) string {
	out := input
	for _, sp := range secretPatterns {
		name := sp.name
		out = sp.pattern.ReplaceAllStringFunc(out, func(match string) string {
			return redactMatch(match, name)
		})
	}
	return out
}

func redactMatch(match, name string) string {
	switch name {
	case "env":
		if idx := strings.IndexAny(match, "=:"); idx >= 0 {
			val := strings.Trim(strings.TrimSpace(match[idx+1:]), `'"`)
			return match[:idx+1] + " " + partialRedact(val)
		}
	case "bearer":
		if parts := strings.SplitN(match, " ", 2); len(parts) == 2 {
			return parts[0] + " " + partialRedact(strings.TrimSpace(parts[1]))
		}
	}
	return partialRedact(match)
}

// partialRedact keeps the first 4 chars and replaces the rest.
func partialRedact(s string) string {
	if len(s) <= 4 {
		return "[REDACTED]"
	}
	return s[:4] + "...[REDACTED]"
}
