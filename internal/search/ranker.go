package search

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/echomind/backend/internal/models"
)

const (
	// DefaultThreshold favors recall over precision; the language model is
	// expected to filter weakly relevant context out of its answer.
	DefaultThreshold = 0.2

	// substringScore is the fixed nominal score for non-semantic matches so
	// both paths can coexist in one ranked list.
	substringScore = 0.5
)

// Excerpt is a single historical message surfaced as evidence for a query.
// It lives for one query invocation and is never persisted.
type Excerpt struct {
	Conversation string    `json:"conversation"`
	Content      string    `json:"content"`
	Sender       string    `json:"sender"`
	Similarity   float64   `json:"similarity"`
	Timestamp    time.Time `json:"timestamp"`
}

// ConversationDoc is the in-memory corpus unit handed to the ranker: one
// conversation with its messages in timestamp order.
type ConversationDoc struct {
	Title    string
	Summary  string
	Messages []models.Message
}

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1], or 0 when either vector is empty, mismatched, or zero-length.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every message in the corpus against the query and returns
// excerpts above threshold, highest similarity first. Messages carrying an
// embedding are scored by cosine similarity against queryVec; messages
// without one (or every message, when queryVec is empty) fall back to
// case-insensitive substring containment of queryText at a fixed score.
// The sort is stable, so ties keep corpus order and identical inputs give
// identical output.
func Rank(queryVec []float32, queryText string, corpus []ConversationDoc, threshold float64) []Excerpt {
	queryLower := strings.ToLower(strings.TrimSpace(queryText))

	var out []Excerpt
	for _, doc := range corpus {
		for _, msg := range doc.Messages {
			var score float64
			if emb := msg.EmbeddingSlice(); len(emb) > 0 && len(queryVec) > 0 {
				score = CosineSimilarity(queryVec, emb)
			} else if queryLower != "" && strings.Contains(strings.ToLower(msg.Content), queryLower) {
				score = substringScore
			}
			if score <= threshold {
				continue
			}
			out = append(out, Excerpt{
				Conversation: doc.Title,
				Content:      msg.Content,
				Sender:       string(msg.Sender),
				Similarity:   score,
				Timestamp:    msg.Timestamp,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}
