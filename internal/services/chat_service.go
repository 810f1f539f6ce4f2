package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/echomind/backend/internal/cache"
	"github.com/echomind/backend/internal/models"
	"github.com/echomind/backend/internal/providers/embedding"
	"github.com/echomind/backend/internal/providers/llm"
	pgrepo "github.com/echomind/backend/internal/repositories/postgres"
	"github.com/echomind/backend/internal/utils"
)

const (
	chatSystemPrompt = "You are a helpful AI assistant. Provide thoughtful, engaging responses."

	titlePromptPrefix = "Generate a very short title (max 5 words) for this conversation starter: "

	// prior messages included in the chat prompt
	historyLimit = 10

	// auto-derived and model-derived titles are capped at this many characters
	titleMaxLen = 50

	chatErrorMessage = "Failed to process your message"
)

type ChatEventType string

const (
	EventUserMessage ChatEventType = "user_message"
	EventAIChunk     ChatEventType = "ai_chunk"
	EventAIMessage   ChatEventType = "ai_message"
	EventComplete    ChatEventType = "complete"
	EventError       ChatEventType = "error"
)

// ChatEvent is one tagged element of a turn's event stream: user_message,
// zero or more ai_chunk, ai_message, then complete — or a terminal error.
type ChatEvent struct {
	Type ChatEventType `json:"type"`
	Data any           `json:"data,omitempty"`
}

type ChatService interface {
	// StreamMessage runs one chat turn and delivers its events in order on
	// the returned channel, which is closed after the terminal event. Empty
	// content is rejected up front, before any side effect.
	StreamMessage(ctx context.Context, userID, conversationID, content string) (<-chan ChatEvent, error)
}

type chatService struct {
	convos   pgrepo.ConversationRepo
	messages pgrepo.MessageRepo
	embedder embedding.Provider
	model    llm.Provider
	cache    cache.Cache
	log      *logrus.Logger
}

func NewChatService(
	convos pgrepo.ConversationRepo,
	messages pgrepo.MessageRepo,
	embedder embedding.Provider,
	model llm.Provider,
	c cache.Cache,
	log *logrus.Logger,
) ChatService {
	if log == nil {
		log = logrus.New()
	}
	return &chatService{
		convos:   convos,
		messages: messages,
		embedder: embedder,
		model:    model,
		cache:    c,
		log:      log,
	}
}

func (s *chatService) StreamMessage(ctx context.Context, userID, conversationID, content string) (<-chan ChatEvent, error) {
	const op = "ChatService.StreamMessage"

	content = strings.TrimSpace(content)
	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	if content == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "message content cannot be empty", nil)
	}

	out := make(chan ChatEvent, 16)
	go func() {
		defer close(out)
		s.run(ctx, out, userID, conversationID, content)
	}()
	return out, nil
}

// emit forwards one event unless the caller has gone away. Returns false on
// cancellation so the turn stops consuming upstream fragments.
func (s *chatService) emit(ctx context.Context, out chan<- ChatEvent, ev ChatEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *chatService) run(ctx context.Context, out chan<- ChatEvent, userID, conversationID, content string) {
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "conversation_id": conversationID})

	conv, err := s.resolveConversation(ctx, userID, conversationID, content)
	if err != nil {
		s.emit(ctx, out, ChatEvent{Type: EventError, Data: "Conversation not found"})
		return
	}

	// Persist the user message. Embedding failure degrades to an absent
	// embedding, never a failed turn.
	userMsg := s.newMessage(ctx, conv.ID, content, models.SenderUser)
	if err := s.messages.Insert(ctx, userMsg); err != nil {
		log.WithError(err).Error("failed to persist user message")
		s.emit(ctx, out, ChatEvent{Type: EventError, Data: chatErrorMessage})
		return
	}
	s.invalidateList(ctx, userID)
	if !s.emit(ctx, out, ChatEvent{Type: EventUserMessage, Data: userMsg}) {
		return
	}

	prompt, err := s.buildPrompt(ctx, conv.ID)
	if err != nil {
		log.WithError(err).Error("failed to build chat prompt")
		s.emit(ctx, out, ChatEvent{Type: EventError, Data: chatErrorMessage})
		return
	}

	chunks, errs := s.model.Stream(ctx, prompt, llm.Options{
		Temperature: 0.7,
		MaxTokens:   1024,
		System:      chatSystemPrompt,
	})

	var full strings.Builder
	for chunk := range chunks {
		full.WriteString(chunk)
		if !s.emit(ctx, out, ChatEvent{Type: EventAIChunk, Data: chunk}) {
			return
		}
	}

	// errs is closed once the stream ends, so this receive cannot hang even
	// when the provider reports the failure after the last chunk.
	streamErr := <-errs
	if streamErr != nil {
		// Partial accumulated text is discarded, not persisted.
		log.WithError(streamErr).Error("chat stream failed")
		s.emit(ctx, out, ChatEvent{Type: EventError, Data: chatErrorMessage})
		return
	}

	response := strings.TrimSpace(full.String())
	if response != "" {
		aiMsg := s.newMessage(ctx, conv.ID, response, models.SenderAI)
		if err := s.messages.Insert(ctx, aiMsg); err != nil {
			log.WithError(err).Error("failed to persist AI message")
			s.emit(ctx, out, ChatEvent{Type: EventError, Data: chatErrorMessage})
			return
		}
		s.invalidateList(ctx, userID)
		if !s.emit(ctx, out, ChatEvent{Type: EventAIMessage, Data: aiMsg}) {
			return
		}

		s.maybeGenerateTitle(ctx, conv, content)
	}

	s.emit(ctx, out, ChatEvent{Type: EventComplete})
}

func (s *chatService) resolveConversation(ctx context.Context, userID, conversationID, content string) (*models.Conversation, error) {
	if conversationID != "" {
		conv, err := s.convos.GetByID(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if conv.UserID != userID {
			return nil, utils.ErrNotFound
		}
		return conv, nil
	}

	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     truncateTitle(content),
		Status:    models.StatusActive,
		StartTime: time.Now().UTC(),
	}
	if err := s.convos.Insert(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *chatService) newMessage(ctx context.Context, conversationID, content string, sender models.Sender) *models.Message {
	m := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Content:        content,
		Sender:         sender,
		Timestamp:      time.Now().UTC(),
	}
	if emb := s.embedder.Embed(ctx, content); len(emb) > 0 {
		vec := pgvector.NewVector(emb)
		m.Embedding = &vec
	}
	return m
}

// buildPrompt renders the most recent messages, including the turn's user
// message, in chronological order with role labels.
func (s *chatService) buildPrompt(ctx context.Context, conversationID string) (string, error) {
	history, err := s.messages.LatestN(ctx, conversationID, historyLimit)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, m := range history {
		role := "User"
		if m.Sender == models.SenderAI {
			role = "Assistant"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("Assistant:")
	return sb.String(), nil
}

// maybeGenerateTitle replaces the auto-derived title after the first full
// user+AI exchange. Failure is logged and otherwise ignored.
func (s *chatService) maybeGenerateTitle(ctx context.Context, conv *models.Conversation, seed string) {
	count, err := s.messages.CountByConversation(ctx, conv.ID)
	if err != nil || count != 2 {
		return
	}

	title, err := s.model.Generate(ctx, titlePromptPrefix+"'"+seed+"'", llm.Options{
		Temperature: 0.7,
		MaxTokens:   20,
	})
	if err != nil {
		s.log.WithError(err).Warn("title generation failed")
		return
	}

	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if title == "" {
		return
	}
	if r := []rune(title); len(r) > titleMaxLen {
		title = string(r[:titleMaxLen])
	}
	if err := s.convos.UpdateTitle(ctx, conv.ID, title); err != nil {
		s.log.WithError(err).Warn("failed to update conversation title")
		return
	}
	s.invalidateList(ctx, conv.UserID)
}

func (s *chatService) invalidateList(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, conversationListKey(userID)); err != nil {
		s.log.WithError(err).Warn("failed to invalidate conversation list cache")
	}
}

// truncateTitle derives an initial title from the first message: the first
// 50 characters plus an ellipsis when longer.
func truncateTitle(content string) string {
	r := []rune(content)
	if len(r) <= titleMaxLen {
		return content
	}
	return string(r[:titleMaxLen]) + "..."
}
