package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/vector"
	"github.com/feichai0017/aipower/pkg/logger"
)

type fakeRetriever struct {
	hits    []*vector.SearchResult
	err     error
	lastTop int
	lastMin float64
}

func (r *fakeRetriever) Search(ctx context.Context, embedding []float32, topK int, minScore float64) ([]*vector.SearchResult, error) {
	r.lastTop = topK
	r.lastMin = minScore
	if r.err != nil {
		return nil, r.err
	}
	return r.hits, nil
}

type fakeLLM struct {
	answer      string
	chunks      []string
	chatErr     error
	lastMsgs    []models.ChatMessage
	embeddedTxt string
}

func (l *fakeLLM) Embed(ctx context.Context, model, text string) ([]float32, error) {
	l.embeddedTxt = text
	return []float32{0.1, 0.2}, nil
}

func (l *fakeLLM) Chat(ctx context.Context, model string, messages []models.ChatMessage) (string, error) {
	l.lastMsgs = messages
	if l.chatErr != nil {
		return "", l.chatErr
	}
	return l.answer, nil
}

func (l *fakeLLM) ChatStream(ctx context.Context, model string, messages []models.ChatMessage, onChunk func(string) error) error {
	l.lastMsgs = messages
	if l.chatErr != nil {
		return l.chatErr
	}
	for _, c := range l.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

type fakeResolver struct {
	model string
	err   error
}

func (r *fakeResolver) GetActive(ctx context.Context) (string, error) {
	return r.model, r.err
}

func newChatFixture() (*Service, *fakeRetriever, *fakeLLM) {
	retriever := &fakeRetriever{
		hits: []*vector.SearchResult{
			{DocumentID: "d1", ChunkIndex: 0, Text: "relevant passage", Score: 0.62},
		},
	}
	llm := &fakeLLM{answer: "the answer", chunks: []string{"the ", "answer"}}
	svc := NewService(retriever, llm, &fakeResolver{model: "llama3.2:3b"}, logger.NewTestLogger())
	return svc, retriever, llm
}

func userMsg(content string) []models.ChatMessage {
	return []models.ChatMessage{{Role: "user", Content: content}}
}

func TestChatReturnsAnswerWithSources(t *testing.T) {
	svc, _, llm := newChatFixture()

	result, err := svc.Chat(context.Background(), userMsg("what is this?"), true)
	require.NoError(t, err)

	assert.Equal(t, "the answer", result.Message)
	assert.Equal(t, "llama3.2:3b", result.Model)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, 0.62, result.Sources[0].Score)
	assert.Equal(t, "d1", result.Sources[0].Metadata["documentId"])

	// 检索命中注入为 system prompt
	require.NotEmpty(t, llm.lastMsgs)
	assert.Equal(t, "system", llm.lastMsgs[0].Role)
	assert.Contains(t, llm.lastMsgs[0].Content, "relevant passage")
	assert.Equal(t, "what is this?", llm.embeddedTxt)
}

func TestChatWithoutRAGSkipsRetrieval(t *testing.T) {
	svc, retriever, llm := newChatFixture()

	result, err := svc.Chat(context.Background(), userMsg("hi"), false)
	require.NoError(t, err)

	assert.Empty(t, result.Sources)
	assert.Zero(t, retriever.lastTop)
	// 没有检索就没有 system prompt
	assert.Equal(t, "user", llm.lastMsgs[0].Role)
}

func TestChatWithEmptyIndexAnswersFromHistory(t *testing.T) {
	svc, retriever, llm := newChatFixture()
	retriever.hits = nil

	result, err := svc.Chat(context.Background(), userMsg("anything indexed?"), true)
	require.NoError(t, err)

	assert.Equal(t, "the answer", result.Message)
	assert.Empty(t, result.Sources)
	// 没有命中时不注入 system prompt，按原始对话生成
	assert.Equal(t, "user", llm.lastMsgs[0].Role)
}

func TestChatEmbedsLastUserTurn(t *testing.T) {
	svc, _, llm := newChatFixture()
	messages := []models.ChatMessage{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "follow-up question"},
	}

	_, err := svc.Chat(context.Background(), messages, true)
	require.NoError(t, err)
	assert.Equal(t, "follow-up question", llm.embeddedTxt)
}

func TestChatRequiresUserMessage(t *testing.T) {
	svc, _, _ := newChatFixture()
	_, err := svc.Chat(context.Background(), []models.ChatMessage{{Role: "assistant", Content: "hi"}}, true)
	require.Error(t, err)
}

func TestChatUsesConfiguredThresholds(t *testing.T) {
	svc, retriever, _ := newChatFixture()

	_, err := svc.Chat(context.Background(), userMsg("q"), true)
	require.NoError(t, err)
	assert.Equal(t, 5, retriever.lastTop)
	assert.InDelta(t, 0.3, retriever.lastMin, 1e-9)
}

func TestChatStreamEventOrdering(t *testing.T) {
	svc, _, _ := newChatFixture()

	events, err := svc.ChatStream(context.Background(), userMsg("q"), true)
	require.NoError(t, err)

	var collected []models.ChatEvent
	for ev := range events {
		collected = append(collected, ev)
	}

	require.Len(t, collected, 4)
	assert.Equal(t, models.EventSources, collected[0].Type)
	require.Len(t, collected[0].Sources, 1)
	assert.Equal(t, models.EventChunk, collected[1].Type)
	assert.Equal(t, "the ", collected[1].Content)
	assert.Equal(t, models.EventChunk, collected[2].Type)
	assert.Equal(t, models.EventDone, collected[3].Type)

	// 拼接 chunk 得到完整回答
	var sb strings.Builder
	for _, ev := range collected {
		sb.WriteString(ev.Content)
	}
	assert.Equal(t, "the answer", sb.String())
}

func TestChatStreamRetrievalFailureEmitsError(t *testing.T) {
	svc, retriever, _ := newChatFixture()
	retriever.err = errors.New("index unavailable")

	events, err := svc.ChatStream(context.Background(), userMsg("q"), true)
	require.NoError(t, err)

	var collected []models.ChatEvent
	for ev := range events {
		collected = append(collected, ev)
	}
	require.Len(t, collected, 1)
	assert.Equal(t, models.EventError, collected[0].Type)
	assert.Contains(t, collected[0].Error, "index unavailable")
}

func TestChatStreamLLMFailureEmitsErrorAfterSources(t *testing.T) {
	svc, _, llm := newChatFixture()
	llm.chatErr = errors.New("model crashed")

	events, err := svc.ChatStream(context.Background(), userMsg("q"), true)
	require.NoError(t, err)

	var collected []models.ChatEvent
	for ev := range events {
		collected = append(collected, ev)
	}
	require.Len(t, collected, 2)
	assert.Equal(t, models.EventSources, collected[0].Type)
	assert.Equal(t, models.EventError, collected[1].Type)
}

func TestChatResolverFailure(t *testing.T) {
	retriever := &fakeRetriever{}
	llm := &fakeLLM{}
	svc := NewService(retriever, llm, &fakeResolver{err: errors.New("redis down")}, logger.NewTestLogger())

	_, err := svc.Chat(context.Background(), userMsg("q"), true)
	require.Error(t, err)
	_, err = svc.ChatStream(context.Background(), userMsg("q"), true)
	require.Error(t, err)
}
