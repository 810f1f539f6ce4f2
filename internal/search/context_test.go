package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildContextPrimaryPath(t *testing.T) {
	ranked := []Excerpt{
		{Conversation: "Travel Planning to Japan", Sender: "user", Content: "I'm planning a trip to Japan", Similarity: 0.9},
		{Conversation: "Budget", Sender: "ai", Content: "You saved 2000 this month", Similarity: 0.4},
	}

	text, usedFallback, ok := BuildContext(ranked, nil, 8)
	require.True(t, ok)
	require.False(t, usedFallback)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "From conversation 'Travel Planning to Japan' (user): I'm planning a trip to Japan", lines[0])
	require.Equal(t, "From conversation 'Budget' (ai): You saved 2000 this month", lines[1])
}

func TestBuildContextCapsExcerpts(t *testing.T) {
	ranked := make([]Excerpt, 12)
	for i := range ranked {
		ranked[i] = Excerpt{Conversation: "C", Sender: "user", Content: "x"}
	}

	text, _, ok := BuildContext(ranked, nil, 8)
	require.True(t, ok)
	require.Len(t, strings.Split(text, "\n"), 8)
}

func TestBuildContextFallbackOnlyWhenRankedEmpty(t *testing.T) {
	corpus := []ConversationDoc{
		{Title: "A", Summary: "Talked about travel"},
		{Title: "B"},
	}

	// non-empty ranked list never uses the fallback, summaries or not
	_, usedFallback, _ := BuildContext([]Excerpt{{Conversation: "A", Content: "x"}}, corpus, 8)
	require.False(t, usedFallback)

	text, usedFallback, ok := BuildContext(nil, corpus, 8)
	require.True(t, usedFallback)
	require.True(t, ok)

	lines := strings.Split(text, "\n")
	require.Equal(t, "Conversation 'A': Talked about travel", lines[0])
	require.Equal(t, "Conversation 'B': No summary available", lines[1])
}

func TestBuildContextFallbackCapsSummaries(t *testing.T) {
	corpus := make([]ConversationDoc, 7)
	for i := range corpus {
		corpus[i] = ConversationDoc{Title: "C", Summary: "s"}
	}

	text, usedFallback, ok := BuildContext(nil, corpus, 8)
	require.True(t, usedFallback)
	require.True(t, ok)
	require.Len(t, strings.Split(text, "\n"), 5)
}

func TestBuildContextNoMaterial(t *testing.T) {
	_, usedFallback, ok := BuildContext(nil, nil, 8)
	require.True(t, usedFallback)
	require.False(t, ok)

	// conversations without any summary are no material either
	_, _, ok = BuildContext(nil, []ConversationDoc{{Title: "A"}, {Title: "B"}}, 8)
	require.False(t, ok)
}
