package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/aipower/config"
	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/pkg/logger"
)

// Client Ollama HTTP API 客户端
type Client struct {
	baseURL       string
	httpClient    *http.Client
	pullClient    *http.Client
	maxConcurrent int
	log           logger.Logger
}

// NewClient 创建 Ollama 客户端
func NewClient(log logger.Logger) *Client {
	cfg := config.GetOllamaConfig()
	return &Client{
		baseURL:       cfg.BaseURL,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		pullClient:    &http.Client{Timeout: cfg.PullTimeout},
		maxConcurrent: cfg.MaxConcurrent,
		log:           log.Named("ollama"),
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed 生成单条文本的向量
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, "/api/embeddings", embedRequest{Model: model, Prompt: text}, &resp); err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding for model %s", model)
	}
	return resp.Embedding, nil
}

// EmbedBatch 并发生成多条文本的向量，结果顺序与输入一致
func (c *Client) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := c.Embed(gctx, model, text)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate 非流式单轮生成
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	var resp generateResponse
	if err := c.post(ctx, "/api/generate", generateRequest{Model: model, Prompt: prompt, Stream: false}, &resp); err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	return resp.Response, nil
}

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

type chatResponse struct {
	Message models.ChatMessage `json:"message"`
	Done    bool               `json:"done"`
}

// Chat 非流式多轮对话
func (c *Client) Chat(ctx context.Context, model string, messages []models.ChatMessage) (string, error) {
	var resp chatResponse
	if err := c.post(ctx, "/api/chat", chatRequest{Model: model, Messages: messages, Stream: false}, &resp); err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	return resp.Message.Content, nil
}

// ChatStream 流式多轮对话，每个增量片段回调一次 onChunk
func (c *Client) ChatStream(ctx context.Context, model string, messages []models.ChatMessage, onChunk func(string) error) error {
	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return fmt.Errorf("failed to marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat stream request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	// Ollama 流式响应为逐行 JSON
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if chunk.Message.Content != "" {
			if err := onChunk(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

type tagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Size       int64     `json:"size"`
		Digest     string    `json:"digest"`
		ModifiedAt time.Time `json:"modified_at"`
	} `json:"models"`
}

// ListModels 列出已安装的模型
func (c *Client) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tags request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags response: %w", err)
	}
	infos := make([]models.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		infos = append(infos, models.ModelInfo{
			Name:       m.Name,
			Size:       m.Size,
			Digest:     m.Digest,
			ModifiedAt: m.ModifiedAt.Format(time.RFC3339),
		})
	}
	return infos, nil
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullEvent 拉取模型时的单条进度事件
type PullEvent struct {
	Status    string `json:"status"`
	Digest    string `json:"digest"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
}

// Pull 拉取模型，每条进度事件回调一次 onProgress
func (c *Client) Pull(ctx context.Context, model string, onProgress func(PullEvent) error) error {
	body, err := json.Marshal(pullRequest{Name: model, Stream: true})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.pullClient.Do(req)
	if err != nil {
		return fmt.Errorf("pull request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev PullEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("failed to decode pull event: %w", err)
		}
		if err := onProgress(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("pull stream read failed: %w", err)
	}
	return nil
}

type deleteRequest struct {
	Name string `json:"name"`
}

// DeleteModel 删除已安装的模型
func (c *Client) DeleteModel(ctx context.Context, model string) error {
	body, err := json.Marshal(deleteRequest{Name: model})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/delete", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	return nil
}

// Healthy 检查 Ollama 服务是否可达
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return fmt.Errorf("ollama: %s (status %d)", e.Error, resp.StatusCode)
	}
	return fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
}
