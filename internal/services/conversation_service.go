package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/echomind/backend/internal/cache"
	"github.com/echomind/backend/internal/models"
	"github.com/echomind/backend/internal/providers/llm"
	mongorepo "github.com/echomind/backend/internal/repositories/mongo"
	pgrepo "github.com/echomind/backend/internal/repositories/postgres"
	"github.com/echomind/backend/internal/utils"
)

const (
	summaryUnavailable = "Summary unavailable"

	analysisPromptTemplate = `Analyze the following conversation and provide a comprehensive analysis in JSON format with these exact keys:
- "summary": A concise 2-3 sentence summary of the main discussion points
- "key_topics": A list of 3-5 main topics discussed (as strings)
- "action_items": A list of any action items, decisions, or next steps mentioned (as strings)
- "sentiment": The overall sentiment of the conversation (positive, negative, or neutral)

Conversation:
%s

Provide only valid JSON without any additional text:`

	// uniform weight assigned to every extracted topic
	topicWeight = 0.2

	listCacheTTL = time.Minute
)

type ConversationSummary struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Status       models.ConversationStatus `json:"status"`
	StartTime    time.Time                 `json:"start_time"`
	EndTime      *time.Time                `json:"end_time,omitempty"`
	Summary      string                    `json:"summary,omitempty"`
	MessageCount int64                     `json:"message_count"`
	LastMessage  string                    `json:"last_message,omitempty"`
}

type ConversationDetail struct {
	models.Conversation
	Messages []models.Message             `json:"messages"`
	Analysis *models.ConversationAnalysis `json:"analysis,omitempty"`
}

type ConversationService interface {
	Create(ctx context.Context, userID, title string) (*models.Conversation, error)
	Get(ctx context.Context, userID, id string) (*models.Conversation, error)
	Detail(ctx context.Context, userID, id string) (*ConversationDetail, error)
	List(ctx context.Context, userID string) ([]ConversationSummary, error)
	// End performs the one-way active -> ended transition, extracting and
	// persisting summary, topics, action items, sentiment, and one analysis
	// record. Ending an already-ended conversation is a no-op.
	End(ctx context.Context, userID, id string) (*models.Conversation, error)
}

type conversationService struct {
	convos   pgrepo.ConversationRepo
	messages pgrepo.MessageRepo
	analyses mongorepo.AnalysisRepository
	model    llm.Provider
	cache    cache.Cache
	log      *logrus.Logger
}

func NewConversationService(
	convos pgrepo.ConversationRepo,
	messages pgrepo.MessageRepo,
	analyses mongorepo.AnalysisRepository,
	model llm.Provider,
	c cache.Cache,
	log *logrus.Logger,
) ConversationService {
	if log == nil {
		log = logrus.New()
	}
	return &conversationService{
		convos:   convos,
		messages: messages,
		analyses: analyses,
		model:    model,
		cache:    c,
		log:      log,
	}
}

func conversationListKey(userID string) string {
	return "conversations:user:" + userID
}

func (s *conversationService) invalidateList(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, conversationListKey(userID)); err != nil {
		s.log.WithError(err).Warn("failed to invalidate conversation list cache")
	}
}

func (s *conversationService) Create(ctx context.Context, userID, title string) (*models.Conversation, error) {
	const op = "ConversationService.Create"

	if userID == "" || title == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and title are required", nil)
	}

	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Status:    models.StatusActive,
		StartTime: time.Now().UTC(),
	}
	if err := s.convos.Insert(ctx, conv); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create conversation", err)
	}
	s.invalidateList(ctx, userID)
	return conv, nil
}

// owned loads a conversation and enforces ownership. A conversation owned by
// another user is reported as not found, never as a distinct case.
func (s *conversationService) owned(ctx context.Context, op, userID, id string) (*models.Conversation, error) {
	if userID == "" || id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and conversation id are required", nil)
	}
	conv, err := s.convos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get conversation", err)
	}
	if conv.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, op, "conversation not found", nil)
	}
	return conv, nil
}

func (s *conversationService) Get(ctx context.Context, userID, id string) (*models.Conversation, error) {
	return s.owned(ctx, "ConversationService.Get", userID, id)
}

func (s *conversationService) Detail(ctx context.Context, userID, id string) (*ConversationDetail, error) {
	const op = "ConversationService.Detail"

	conv, err := s.owned(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}

	detail := &ConversationDetail{Conversation: *conv, Messages: msgs}
	if s.analyses != nil && conv.Ended() {
		if a, err := s.analyses.GetByConversationID(ctx, conv.ID); err == nil {
			detail.Analysis = a
		} else if !errors.Is(err, utils.ErrNotFound) {
			s.log.WithError(err).Warn("failed to load conversation analysis")
		}
	}
	return detail, nil
}

func (s *conversationService) List(ctx context.Context, userID string) ([]ConversationSummary, error) {
	const op = "ConversationService.List"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	key := conversationListKey(userID)
	if s.cache != nil {
		var cached []ConversationSummary
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	rows, err := s.convos.ListByUser(ctx, userID, pgrepo.ConversationFilter{})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}

	out := make([]ConversationSummary, 0, len(rows))
	for _, conv := range rows {
		item := ConversationSummary{
			ID:        conv.ID,
			Title:     conv.Title,
			Status:    conv.Status,
			StartTime: conv.StartTime,
			EndTime:   conv.EndTime,
			Summary:   conv.Summary,
		}
		if n, err := s.messages.CountByConversation(ctx, conv.ID); err == nil {
			item.MessageCount = n
		}
		if msgs, err := s.messages.LatestN(ctx, conv.ID, 1); err == nil && len(msgs) > 0 {
			item.LastMessage = msgs[len(msgs)-1].Content
		}
		out = append(out, item)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, out, listCacheTTL); err != nil {
			s.log.WithError(err).Warn("failed to cache conversation list")
		}
	}
	return out, nil
}

func (s *conversationService) End(ctx context.Context, userID, id string) (*models.Conversation, error) {
	const op = "ConversationService.End"

	conv, err := s.owned(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if conv.Ended() {
		return conv, nil
	}

	msgs, err := s.messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}

	now := time.Now().UTC()
	conv.Status = models.StatusEnded
	conv.EndTime = &now

	result, genErr := s.extractAnalysis(ctx, msgs)
	if genErr != nil {
		// Lifecycle completion must not be blocked by analysis failure.
		s.log.WithError(genErr).Error("conversation analysis generation failed")
		conv.Summary = summaryUnavailable
		if err := s.convos.Update(ctx, conv); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to end conversation", err)
		}
		s.invalidateList(ctx, userID)
		return conv, nil
	}

	conv.Summary = result.Summary
	conv.Sentiment = result.Sentiment
	conv.KeyTopics = result.KeyTopics
	conv.ActionItems = result.ActionItems
	if err := s.convos.Update(ctx, conv); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to end conversation", err)
	}

	if s.analyses != nil {
		dist := make(map[string]float64, len(result.KeyTopics))
		for _, topic := range result.KeyTopics {
			dist[topic] = topicWeight
		}
		record := &models.ConversationAnalysis{
			ConversationID:    conv.ID,
			SentimentScore:    sentimentScore(result.Sentiment),
			TopicDistribution: dist,
			KeyPhrases:        result.KeyTopics,
			MessageCount:      int64(len(msgs)),
			CreatedAt:         now,
		}
		if err := s.analyses.Create(ctx, record); err != nil {
			s.log.WithError(err).Error("failed to persist conversation analysis")
		}
	}

	s.invalidateList(ctx, userID)
	return conv, nil
}

type analysisResult struct {
	Summary     string           `json:"summary"`
	KeyTopics   []string         `json:"key_topics"`
	ActionItems []string         `json:"action_items"`
	Sentiment   models.Sentiment `json:"sentiment"`
}

// extractAnalysis asks the model for a structured record over the transcript.
// A malformed response degrades to per-field defaults; only a failed model
// call is reported as an error.
func (s *conversationService) extractAnalysis(ctx context.Context, msgs []models.Message) (analysisResult, error) {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Sender, m.Content))
	}
	prompt := fmt.Sprintf(analysisPromptTemplate, strings.Join(lines, "\n"))

	raw, err := s.model.Generate(ctx, prompt, llm.Options{Temperature: 0.2, MaxTokens: 1024})
	if err != nil {
		return analysisResult{}, err
	}

	var result analysisResult
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		s.log.WithError(err).Warn("analysis response is not valid JSON, using defaults")
	}
	switch result.Sentiment {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
	default:
		result.Sentiment = models.SentimentNeutral
	}
	return result, nil
}

func sentimentScore(s models.Sentiment) float64 {
	switch s {
	case models.SentimentPositive:
		return 0.8
	case models.SentimentNegative:
		return 0.2
	default:
		return 0.5
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
