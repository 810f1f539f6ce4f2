package search

import (
	"fmt"
	"strings"
)

const (
	// DefaultMaxExcerpts bounds the primary context.
	DefaultMaxExcerpts = 8

	// maxFallbackSummaries bounds the summary fallback context.
	maxFallbackSummaries = 5

	noSummaryPlaceholder = "No summary available"
)

// BuildContext renders the bounded prompt context for a query.
//
// Primary path: the top maxExcerpts ranked excerpts, one line each. Fallback
// path, taken only when there are no excerpts at all: up to five stored
// conversation summaries. usedFallback reports which path produced the text;
// ok is false when neither path has material, so the caller can short-circuit
// without a model call.
func BuildContext(ranked []Excerpt, corpus []ConversationDoc, maxExcerpts int) (contextText string, usedFallback bool, ok bool) {
	if maxExcerpts <= 0 {
		maxExcerpts = DefaultMaxExcerpts
	}

	if len(ranked) > 0 {
		if len(ranked) > maxExcerpts {
			ranked = ranked[:maxExcerpts]
		}
		lines := make([]string, 0, len(ranked))
		for _, ex := range ranked {
			lines = append(lines, fmt.Sprintf("From conversation '%s' (%s): %s", ex.Conversation, ex.Sender, ex.Content))
		}
		return strings.Join(lines, "\n"), false, true
	}

	// No excerpts: fall back to stored summaries, but only signal material
	// when at least one conversation actually has a summary.
	hasSummary := false
	lines := make([]string, 0, maxFallbackSummaries)
	for _, doc := range corpus {
		if len(lines) == maxFallbackSummaries {
			break
		}
		summary := strings.TrimSpace(doc.Summary)
		if summary != "" {
			hasSummary = true
		} else {
			summary = noSummaryPlaceholder
		}
		lines = append(lines, fmt.Sprintf("Conversation '%s': %s", doc.Title, summary))
	}
	if !hasSummary {
		return "", true, false
	}
	return strings.Join(lines, "\n"), true, true
}
