package corpus

import (
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// fmDelimiter delimits a YAML front-matter block. The opening delimiter
// must be the very first line of the file.
const fmDelimiter = "---"

// splitFrontMatter separates an optional YAML front-matter block from the
// document body. It returns the parsed metadata (nil when absent) and the
// body with the block stripped.
//
// A malformed block is not fatal: the file is treated as having no
// front-matter at all, so a single bad document cannot fail a whole load.
func splitFrontMatter(raw string, logger *slog.Logger) (map[string]any, string) {
	rest, ok := strings.CutPrefix(raw, fmDelimiter+"\n")
	if !ok {
		// Also accept CRLF after the opening delimiter
		rest, ok = strings.CutPrefix(raw, fmDelimiter+"\r\n")
		if !ok {
			return nil, raw
		}
	}

	block, body, ok := cutDelimiterLine(rest)
	if !ok {
		// Unterminated block: keep the file intact
		return nil, raw
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		logger.Warn("malformed front-matter, treating file as plain body", "error", err)
		return nil, raw
	}

	return meta, strings.TrimPrefix(body, "\n")
}

// cutDelimiterLine splits s at the first line that consists solely of the
// front-matter delimiter. Returns the text before the delimiter line, the
// text after it, and whether a delimiter line was found.
func cutDelimiterLine(s string) (before, after string, found bool) {
	offset := 0
	for line := range strings.Lines(s) {
		trimmed := strings.TrimRight(line, "\n\r")
		if trimmed == fmDelimiter {
			return s[:offset], s[offset+len(line):], true
		}
		offset += len(line)
	}
	return "", "", false
}
