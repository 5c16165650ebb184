// Package playlist parses the extended-M3U dialect upstream providers emit
// and classifies each entry's content type from its stream URL (§4.2).
package playlist

import (
	"fmt"
	"strings"

	"lineupd/internal/errs"
)

// Entry is one parsed M3U channel line-pair: an #EXTINF metadata line plus
// its following stream URL.
type Entry struct {
	TvgID       string
	TvgName     string
	TvgLogo     string
	GroupTitle  string
	DisplayName string
	StreamURL   string
}

// Parse scans extended-M3U content and returns one Entry per channel.
// Attribute extraction is case-insensitive on the attribute name; an
// explicit group marker (#EXTGRP) on the entry takes precedence over the
// group-title attribute.
//
// Parse rejects content that isn't recognizable M3U (§4.4.5): a missing
// #EXTM3U header, or a header present but zero entries parsed out of a
// non-empty body, returns errs.ErrParseFailed rather than an empty slice —
// an HTML error page or a truncated response must not be mistaken for "the
// provider removed every channel."
func Parse(content string) ([]Entry, error) {
	trimmedContent := strings.TrimSpace(content)
	if trimmedContent == "" {
		return nil, fmt.Errorf("%w: empty playlist body", errs.ErrParseFailed)
	}

	firstLine := trimmedContent
	if idx := strings.IndexAny(trimmedContent, "\r\n"); idx != -1 {
		firstLine = trimmedContent[:idx]
	}
	if !hasPrefixFold(strings.TrimSpace(firstLine), "#EXTM3U") {
		return nil, fmt.Errorf("%w: missing #EXTM3U header", errs.ErrParseFailed)
	}

	var entries []Entry
	lines := strings.Split(content, "\n")

	var current Entry
	var haveCurrent bool
	var explicitGroup string

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case hasPrefixFold(trimmed, "#EXTINF:"):
			current = Entry{}
			haveCurrent = true
			explicitGroup = ""

			current.TvgID = extractAttr(trimmed, "tvg-id")
			current.TvgName = extractAttr(trimmed, "tvg-name")
			current.TvgLogo = extractAttr(trimmed, "tvg-logo")
			current.GroupTitle = extractAttr(trimmed, "group-title")

			if idx := strings.LastIndex(trimmed, ","); idx != -1 {
				current.DisplayName = strings.TrimSpace(trimmed[idx+1:])
			}

		case hasPrefixFold(trimmed, "#EXTGRP:"):
			explicitGroup = strings.TrimSpace(trimmed[len("#EXTGRP:"):])

		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			// Comment, directive, or blank line — ignore.

		default:
			if !haveCurrent {
				continue
			}
			current.StreamURL = trimmed
			if explicitGroup != "" {
				current.GroupTitle = explicitGroup
			}
			current.DisplayName = resolveDisplayName(current.DisplayName, current.TvgName)
			entries = append(entries, current)
			haveCurrent = false
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no recognizable #EXTINF entries", errs.ErrParseFailed)
	}
	return entries, nil
}

// resolveDisplayName implements the fallback chain (§4.2): trailing label
// -> tvg-name -> "Unnamed Channel". Whitespace-only values at any level are
// treated as absent.
func resolveDisplayName(label, tvgName string) string {
	if strings.TrimSpace(label) != "" {
		return strings.TrimSpace(label)
	}
	if strings.TrimSpace(tvgName) != "" {
		return strings.TrimSpace(tvgName)
	}
	return "Unnamed Channel"
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// extractAttr finds attr="value" case-insensitively on the attribute name
// and returns value, or "" if absent or whitespace-only.
func extractAttr(line, attr string) string {
	lower := strings.ToLower(line)
	needle := strings.ToLower(attr) + `="`
	idx := strings.Index(lower, needle)
	if idx == -1 {
		return ""
	}
	start := idx + len(needle)
	end := strings.Index(line[start:], `"`)
	if end == -1 {
		return ""
	}
	v := strings.TrimSpace(line[start : start+end])
	return v
}
