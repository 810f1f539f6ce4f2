package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/echomind/backend/internal/models"
	"github.com/echomind/backend/internal/providers/llm"
	"github.com/echomind/backend/internal/utils"
)

func collectEvents(t *testing.T, ch <-chan ChatEvent) []ChatEvent {
	t.Helper()
	var events []ChatEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []ChatEvent) []ChatEventType {
	out := make([]ChatEventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestStreamMessageHappyPath(t *testing.T) {
	convos := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	model := &fakeLLM{streamChunks: []string{"Hello", " there", "!"}}
	svc := NewChatService(convos, msgs, &fakeEmbedder{vec: []float32{0.1, 0.2}}, model, nil, nil)

	ch, err := svc.StreamMessage(context.Background(), "user-1", "", "Hi, how are you?")
	require.NoError(t, err)
	events := collectEvents(t, ch)

	require.Equal(t, []ChatEventType{
		EventUserMessage,
		EventAIChunk, EventAIChunk, EventAIChunk,
		EventAIMessage,
		EventComplete,
	}, eventTypes(events))

	userMsg, ok := events[0].Data.(*models.Message)
	require.True(t, ok)
	require.Equal(t, "Hi, how are you?", userMsg.Content)
	require.Equal(t, models.SenderUser, userMsg.Sender)
	require.NotNil(t, userMsg.Embedding)

	aiMsg, ok := events[4].Data.(*models.Message)
	require.True(t, ok)
	require.Equal(t, "Hello there!", aiMsg.Content)
	require.Equal(t, models.SenderAI, aiMsg.Sender)

	stored, err := msgs.ListByConversation(context.Background(), userMsg.ConversationID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestStreamMessageCreatesConversationWithTruncatedTitle(t *testing.T) {
	convos := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	model := &fakeLLM{streamChunks: []string{"ok"}}
	svc := NewChatService(convos, msgs, &fakeEmbedder{}, model, nil, nil)

	long := strings.Repeat("a", 51)
	ch, err := svc.StreamMessage(context.Background(), "user-1", "", long)
	require.NoError(t, err)
	events := collectEvents(t, ch)

	userMsg := events[0].Data.(*models.Message)
	conv, err := convos.GetByID(context.Background(), userMsg.ConversationID)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("a", 50)+"...", conv.Title)
	require.Equal(t, models.StatusActive, conv.Status)
}

func TestStreamMessageMidStreamFailure(t *testing.T) {
	convos := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	model := &fakeLLM{streamChunks: []string{"partial ", "answer"}, streamErr: llm.ErrUnavailable}
	svc := NewChatService(convos, msgs, &fakeEmbedder{}, model, nil, nil)

	ch, err := svc.StreamMessage(context.Background(), "user-1", "", "Hi")
	require.NoError(t, err)
	events := collectEvents(t, ch)

	require.Equal(t, []ChatEventType{
		EventUserMessage,
		EventAIChunk, EventAIChunk,
		EventError,
	}, eventTypes(events))
	require.Equal(t, chatErrorMessage, events[len(events)-1].Data)

	// only the user message is persisted, the partial AI text is discarded
	userMsg := events[0].Data.(*models.Message)
	stored, err := msgs.ListByConversation(context.Background(), userMsg.ConversationID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, models.SenderUser, stored[0].Sender)
}

// lateFailLLM delivers the stream error only after the chunk channel closes,
// over unbuffered channels, the way a transport-level failure surfaces.
type lateFailLLM struct {
	chunks []string
}

func (l *lateFailLLM) Generate(context.Context, string, llm.Options) (string, error) {
	return "", llm.ErrUnavailable
}

func (l *lateFailLLM) Stream(context.Context, string, llm.Options) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error)
	go func() {
		for _, c := range l.chunks {
			out <- c
		}
		close(out)
		errs <- llm.ErrUnavailable
		close(errs)
	}()
	return out, errs
}

func (l *lateFailLLM) Close() error { return nil }

func TestStreamMessageErrorAfterChunksClose(t *testing.T) {
	convos := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	svc := NewChatService(convos, msgs, &fakeEmbedder{}, &lateFailLLM{chunks: []string{"partial"}}, nil, nil)

	ch, err := svc.StreamMessage(context.Background(), "user-1", "", "Hi")
	require.NoError(t, err)
	events := collectEvents(t, ch)

	require.Equal(t, []ChatEventType{
		EventUserMessage,
		EventAIChunk,
		EventError,
	}, eventTypes(events))

	userMsg := events[0].Data.(*models.Message)
	stored, err := msgs.ListByConversation(context.Background(), userMsg.ConversationID)
	require.NoError(t, err)
	require.Len(t, stored, 1, "late-reported failures must still discard the partial AI text")
}

func TestStreamMessageEmptyContentRejected(t *testing.T) {
	svc := NewChatService(newFakeConversationRepo(), newFakeMessageRepo(), &fakeEmbedder{}, &fakeLLM{}, nil, nil)

	_, err := svc.StreamMessage(context.Background(), "user-1", "", "   ")
	require.Error(t, err)
	require.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestStreamMessageMissingUserRejected(t *testing.T) {
	svc := NewChatService(newFakeConversationRepo(), newFakeMessageRepo(), &fakeEmbedder{}, &fakeLLM{}, nil, nil)

	_, err := svc.StreamMessage(context.Background(), "", "", "Hi")
	require.Error(t, err)
	require.True(t, utils.IsCode(err, utils.CodeUnauthorized))
}

func TestStreamMessageOtherUsersConversation(t *testing.T) {
	convos := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	conv := seedConversation(t, convos, msgs, "user-1", "Private", nil)

	svc := NewChatService(convos, msgs, &fakeEmbedder{}, &fakeLLM{streamChunks: []string{"x"}}, nil, nil)

	ch, err := svc.StreamMessage(context.Background(), "user-2", conv.ID, "Hi")
	require.NoError(t, err)
	events := collectEvents(t, ch)

	require.Equal(t, []ChatEventType{EventError}, eventTypes(events))
	require.Equal(t, "Conversation not found", events[0].Data)

	stored, err := msgs.ListByConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Empty(t, stored, "no message may land in a conversation the user does not own")
}

func TestStreamMessageGeneratesTitleAfterFirstExchange(t *testing.T) {
	convos := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	model := &fakeLLM{
		streamChunks: []string{"Tokyo and Kyoto are great picks."},
		generateResp: `"Japan Trip Ideas"`,
	}
	svc := NewChatService(convos, msgs, &fakeEmbedder{}, model, nil, nil)

	ch, err := svc.StreamMessage(context.Background(), "user-1", "", "Where should I go in Japan?")
	require.NoError(t, err)
	events := collectEvents(t, ch)

	userMsg := events[0].Data.(*models.Message)
	conv, err := convos.GetByID(context.Background(), userMsg.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "Japan Trip Ideas", conv.Title, "quotes are stripped from the generated title")

	// later turns in the same conversation must not regenerate the title
	ch, err = svc.StreamMessage(context.Background(), "user-1", conv.ID, "What about food?")
	require.NoError(t, err)
	collectEvents(t, ch)
	require.Equal(t, 1, model.calls())
}

func TestStreamMessageTitleFailureIgnored(t *testing.T) {
	convos := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	model := &fakeLLM{
		streamChunks: []string{"sure"},
		generateErr:  llm.ErrUnavailable,
	}
	svc := NewChatService(convos, msgs, &fakeEmbedder{}, model, nil, nil)

	ch, err := svc.StreamMessage(context.Background(), "user-1", "", "Hi")
	require.NoError(t, err)
	events := collectEvents(t, ch)

	require.Equal(t, EventComplete, events[len(events)-1].Type, "title failure must not fail the turn")

	userMsg := events[0].Data.(*models.Message)
	conv, err := convos.GetByID(context.Background(), userMsg.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "Hi", conv.Title)
}

func TestStreamMessagePromptCarriesHistory(t *testing.T) {
	convos := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	conv := seedConversation(t, convos, msgs, "user-1", "Chat", []models.Message{
		{Content: "earlier question", Sender: models.SenderUser},
		{Content: "earlier answer", Sender: models.SenderAI},
	})
	conv.Status = models.StatusActive
	require.NoError(t, convos.Update(context.Background(), conv))

	model := &fakeLLM{streamChunks: []string{"ok"}}
	svc := NewChatService(convos, msgs, &fakeEmbedder{}, model, nil, nil)

	ch, err := svc.StreamMessage(context.Background(), "user-1", conv.ID, "follow-up")
	require.NoError(t, err)
	collectEvents(t, ch)

	model.mu.Lock()
	defer model.mu.Unlock()
	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	require.Contains(t, prompt, "User: earlier question")
	require.Contains(t, prompt, "Assistant: earlier answer")
	require.Contains(t, prompt, "User: follow-up")
	require.True(t, strings.HasSuffix(prompt, "Assistant:"))
}
