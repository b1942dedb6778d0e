package extractor

import (
	"strings"

	"github.com/iconidentify/vidgrab/internal/domain"
)

// Pattern maps a substring of the engine's error output to a taxonomy error.
type Pattern struct {
	Substring string
	Kind      error
	Note      string
}

// Patterns is the classification table, checked in order. Matching is
// case-sensitive and English-only: localized engine output falls through to
// ErrExtractionFailed.
var Patterns = []Pattern{
	{
		Substring: "Sign in to confirm you're not a bot",
		Kind:      domain.ErrSiteBlocking,
		Note:      "YouTube bot-verification challenge",
	},
	{
		Substring: "Sign in to confirm you’re not a bot",
		Kind:      domain.ErrSiteBlocking,
		Note:      "same challenge rendered with a typographic apostrophe",
	},
}

// Classify converts engine error output into a *domain.ExtractionError whose
// Kind is the first matching pattern's, or ErrExtractionFailed.
func Classify(output string) error {
	return classifyWith(Patterns, output)
}

func classifyWith(patterns []Pattern, output string) error {
	msg := engineMessage(output)
	for _, p := range patterns {
		if strings.Contains(output, p.Substring) {
			return &domain.ExtractionError{Kind: p.Kind, Message: msg}
		}
	}
	return &domain.ExtractionError{Kind: domain.ErrExtractionFailed, Message: msg}
}

// engineMessage picks the last "ERROR:" line of the output, or the last
// non-empty line when there is none.
func engineMessage(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")

	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return line
		}
		if last == "" {
			last = line
		}
	}
	return last
}
