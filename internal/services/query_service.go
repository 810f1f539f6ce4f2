package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/echomind/backend/internal/providers/embedding"
	"github.com/echomind/backend/internal/providers/llm"
	pgrepo "github.com/echomind/backend/internal/repositories/postgres"
	"github.com/echomind/backend/internal/search"
	"github.com/echomind/backend/internal/utils"
)

const (
	answerNoConversations = "I couldn't find any past conversations matching your criteria."
	answerNoMaterial      = "I couldn't find any relevant information in your past conversations."
	answerQueryFailed     = "I apologize, but I encountered an error while searching through your past conversations."

	queryPromptTemplate = `Based on the following context from past conversations, answer the user's question accurately and helpfully.
If the context doesn't contain relevant information to answer the question, clearly state that you couldn't find specific information.

Context from past conversations:
%s

User's question: %s

Please provide a direct answer to the question based on the available context:`

	// cap on titles and excerpts returned alongside the answer
	maxReportedExcerpts = 5
)

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type QueryRequest struct {
	Query     string     `json:"query"`
	DateRange *DateRange `json:"date_range,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
}

type QueryResult struct {
	Answer                string           `json:"answer"`
	RelevantConversations []string         `json:"relevant_conversations"`
	SupportingExcerpts    []search.Excerpt `json:"supporting_excerpts"`
}

// QueryConfig reconciles the historical ranker variants into one tunable set.
type QueryConfig struct {
	Threshold   float64
	MaxExcerpts int
}

type QueryService interface {
	// AnswerQuery runs the end-to-end retrieval flow: embed the question,
	// rank the user's messages, assemble a bounded context, and generate a
	// grounded answer. Provider failures never escape as errors; they
	// degrade the answer instead.
	AnswerQuery(ctx context.Context, userID string, req QueryRequest) (*QueryResult, error)
}

type queryService struct {
	convos   pgrepo.ConversationRepo
	messages pgrepo.MessageRepo
	embedder embedding.Provider
	model    llm.Provider
	cfg      QueryConfig
	log      *logrus.Logger
}

func NewQueryService(
	convos pgrepo.ConversationRepo,
	messages pgrepo.MessageRepo,
	embedder embedding.Provider,
	model llm.Provider,
	cfg QueryConfig,
	log *logrus.Logger,
) QueryService {
	if cfg.Threshold <= 0 {
		cfg.Threshold = search.DefaultThreshold
	}
	if cfg.MaxExcerpts <= 0 {
		cfg.MaxExcerpts = search.DefaultMaxExcerpts
	}
	if log == nil {
		log = logrus.New()
	}
	return &queryService{
		convos:   convos,
		messages: messages,
		embedder: embedder,
		model:    model,
		cfg:      cfg,
		log:      log,
	}
}

func (s *queryService) AnswerQuery(ctx context.Context, userID string, req QueryRequest) (*QueryResult, error) {
	const op = "QueryService.AnswerQuery"

	if userID == "" || req.Query == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and query are required", nil)
	}

	filter := s.buildFilter(req)
	convs, err := s.convos.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}
	if len(convs) == 0 {
		return &QueryResult{
			Answer:                answerNoConversations,
			RelevantConversations: []string{},
			SupportingExcerpts:    []search.Excerpt{},
		}, nil
	}

	corpus := make([]search.ConversationDoc, 0, len(convs))
	for _, conv := range convs {
		msgs, err := s.messages.ListByConversation(ctx, conv.ID)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
		}
		corpus = append(corpus, search.ConversationDoc{
			Title:    conv.Title,
			Summary:  conv.Summary,
			Messages: msgs,
		})
	}

	// An empty query embedding is not fatal: the ranker degrades to
	// substring matching.
	queryVec := s.embedder.Embed(ctx, req.Query)

	ranked := search.Rank(queryVec, req.Query, corpus, s.cfg.Threshold)
	contextText, usedFallback, ok := search.BuildContext(ranked, corpus, s.cfg.MaxExcerpts)
	if !ok {
		return &QueryResult{
			Answer:                answerNoMaterial,
			RelevantConversations: []string{},
			SupportingExcerpts:    []search.Excerpt{},
		}, nil
	}
	if usedFallback {
		s.log.WithField("user_id", userID).Debug("query context built from summaries fallback")
	}

	prompt := fmt.Sprintf(queryPromptTemplate, contextText, req.Query)
	answer, err := s.model.Generate(ctx, prompt, llm.Options{Temperature: 0.2, MaxTokens: 1024})
	if err != nil {
		s.log.WithError(err).Error("query answer generation failed")
		answer = answerQueryFailed
	}

	top := ranked
	if len(top) > maxReportedExcerpts {
		top = top[:maxReportedExcerpts]
	}

	titles := make([]string, 0, len(top))
	seen := make(map[string]bool, len(top))
	for _, ex := range top {
		if !seen[ex.Conversation] {
			seen[ex.Conversation] = true
			titles = append(titles, ex.Conversation)
		}
	}

	excerpts := make([]search.Excerpt, len(top))
	copy(excerpts, top)

	return &QueryResult{
		Answer:                answer,
		RelevantConversations: titles,
		SupportingExcerpts:    excerpts,
	}, nil
}

// buildFilter parses the optional date range (YYYY-MM-DD, end exclusive of
// the following midnight) and topic list. An invalid date format skips the
// date filter rather than failing the query.
func (s *queryService) buildFilter(req QueryRequest) pgrepo.ConversationFilter {
	f := pgrepo.ConversationFilter{Topics: req.Topics}

	if req.DateRange != nil && req.DateRange.Start != "" && req.DateRange.End != "" {
		start, err1 := time.Parse("2006-01-02", req.DateRange.Start)
		end, err2 := time.Parse("2006-01-02", req.DateRange.End)
		if err1 != nil || err2 != nil {
			s.log.Warn("invalid date format in date_range, skipping filter")
		} else {
			end = end.AddDate(0, 0, 1)
			f.Start = &start
			f.End = &end
		}
	}
	return f
}
