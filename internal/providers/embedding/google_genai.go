package embedding

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

type GoogleGenAI struct {
	client *genai.Client
	model  string
	log    *logrus.Logger
}

func NewGoogleGenAI(ctx context.Context, apiKey, model string, log *logrus.Logger) (*GoogleGenAI, error) {
	if apiKey == "" {
		return nil, errors.New("embedding API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.New()
	}
	return &GoogleGenAI{client: client, model: model, log: log}, nil
}

func (g *GoogleGenAI) Embed(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		g.log.WithError(err).Warn("embedding request failed")
		return nil
	}
	if len(result.Embeddings) == 0 {
		g.log.Warn("embedding request returned no vectors")
		return nil
	}
	return result.Embeddings[0].Values
}

// Dimensions of gemini-embedding-001 vectors (matches the vector(768) column).
func (g *GoogleGenAI) Dimensions() int { return 768 }

// Close is a no-op: the genai client holds no connection that needs closing.
func (g *GoogleGenAI) Close() error { return nil }
