package textutil

import (
	"regexp"
	"strings"
)

var (
	newlineRuns    = regexp.MustCompile(`\n+`)
	interiorSpaces = regexp.MustCompile(`\s+`)
	edgeQuotes     = regexp.MustCompile(`^['"”]|['"”]$`)
	fenceMarkers   = regexp.MustCompile("^```[a-z]*\n?|```$")
)

// CleanOptions controls how much whitespace normalization Clean applies.
type CleanOptions struct {
	// CollapseNewlines replaces every newline run with a single space. Leave
	// false for multi-line note bodies where line structure matters.
	CollapseNewlines bool
}

// Clean normalizes raw model output: lowercases it, drops a leading prompt
// echo line (models frequently open with "extracted text:" or similar),
// strips code fences and surrounding quotes, and trims redundant whitespace.
func Clean(text string, opts CleanOptions) string {
	text = strings.ToLower(text)

	firstLine, rest, hasRest := strings.Cut(text, "\n")
	if strings.Contains(firstLine, "extract") {
		if !hasRest {
			// The whole response was a prompt echo; likely a blank page.
			return ""
		}
		text = rest
	}

	text = fenceMarkers.ReplaceAllString(strings.TrimSpace(text), "")
	if opts.CollapseNewlines {
		text = newlineRuns.ReplaceAllString(text, " ")
	}
	text = strings.TrimSpace(text)
	text = edgeQuotes.ReplaceAllString(text, "")
	if opts.CollapseNewlines {
		text = interiorSpaces.ReplaceAllString(text, " ")
	}
	return strings.TrimSpace(text)
}
