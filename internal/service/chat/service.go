package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/internal/vector"
	"github.com/feichai0017/aipower/pkg/logger"
)

// Retriever 向量检索
type Retriever interface {
	Search(ctx context.Context, embedding []float32, topK int, minScore float64) ([]*vector.SearchResult, error)
}

// LLM 推理客户端
type LLM interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
	Chat(ctx context.Context, model string, messages []models.ChatMessage) (string, error)
	ChatStream(ctx context.Context, model string, messages []models.ChatMessage, onChunk func(string) error) error
}

// ModelResolver 当前激活模型
type ModelResolver interface {
	GetActive(ctx context.Context) (string, error)
}

// Service RAG 问答服务：检索相关文档块并注入上下文后调用 LLM
type Service struct {
	retriever Retriever
	llm       LLM
	resolver  ModelResolver
	log       logger.Logger
}

// NewService 创建问答服务
func NewService(retriever Retriever, llm LLM, resolver ModelResolver, log logger.Logger) *Service {
	return &Service{
		retriever: retriever,
		llm:       llm,
		resolver:  resolver,
		log:       log.Named("chat"),
	}
}

const systemPromptTemplate = `You are a helpful assistant answering questions about the user's knowledge base.
Use the following context to answer. If the context does not contain the answer, say so instead of guessing.

Context:
%s`

// retrieve 以最后一条用户消息为查询做向量检索
func (s *Service) retrieve(ctx context.Context, messages []models.ChatMessage) ([]models.Source, error) {
	query := lastUserMessage(messages)
	if query == "" {
		return nil, fmt.Errorf("no user message in conversation")
	}

	cfg := config.GetIngestConfig()
	embedding, err := s.llm.Embed(ctx, config.GetOllamaConfig().EmbeddingModel, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.retriever.Search(ctx, embedding, cfg.TopK, cfg.MinScore)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	sources := make([]models.Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, models.Source{
			Text:  h.Text,
			Score: h.Score,
			Metadata: map[string]interface{}{
				"documentId": h.DocumentID,
				"chunkIndex": h.ChunkIndex,
			},
		})
	}
	return sources, nil
}

// augment 把检索结果注入为 system prompt
func augment(messages []models.ChatMessage, sources []models.Source) []models.ChatMessage {
	if len(sources) == 0 {
		return messages
	}
	var sb strings.Builder
	for i, src := range sources {
		sb.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, src.Text))
	}
	system := models.ChatMessage{
		Role:    "system",
		Content: fmt.Sprintf(systemPromptTemplate, strings.TrimSpace(sb.String())),
	}
	return append([]models.ChatMessage{system}, messages...)
}

// Chat 非流式问答。useRAG 关闭时跳过检索直接对话。
func (s *Service) Chat(ctx context.Context, messages []models.ChatMessage, useRAG bool) (*models.ChatResult, error) {
	model, err := s.resolver.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active model: %w", err)
	}
	var sources []models.Source
	if useRAG {
		if sources, err = s.retrieve(ctx, messages); err != nil {
			return nil, err
		}
	}

	answer, err := s.llm.Chat(ctx, model, augment(messages, sources))
	if err != nil {
		return nil, fmt.Errorf("chat failed: %w", err)
	}
	return &models.ChatResult{Message: answer, Sources: sources, Model: model}, nil
}

// ChatStream 流式问答。事件顺序：先 sources，然后若干 chunk，最后 done 或 error。
// 返回的 channel 在终态事件后关闭。
func (s *Service) ChatStream(ctx context.Context, messages []models.ChatMessage, useRAG bool) (<-chan models.ChatEvent, error) {
	model, err := s.resolver.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active model: %w", err)
	}

	events := make(chan models.ChatEvent, 16)
	go func() {
		defer close(events)
		emit := func(ev models.ChatEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var sources []models.Source
		if useRAG {
			var err error
			if sources, err = s.retrieve(ctx, messages); err != nil {
				emit(models.ChatEvent{Type: models.EventError, Error: err.Error()})
				return
			}
			if !emit(models.ChatEvent{Type: models.EventSources, Sources: sources}) {
				return
			}
		}

		err := s.llm.ChatStream(ctx, model, augment(messages, sources), func(chunk string) error {
			if !emit(models.ChatEvent{Type: models.EventChunk, Content: chunk}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			emit(models.ChatEvent{Type: models.EventError, Error: err.Error()})
			return
		}
		emit(models.ChatEvent{Type: models.EventDone})
	}()
	return events, nil
}

func lastUserMessage(messages []models.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
