package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/aipower/internal/models"
	"github.com/feichai0017/aipower/pkg/logger"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		baseURL:       srv.URL,
		httpClient:    srv.Client(),
		pullClient:    srv.Client(),
		maxConcurrent: 4,
		log:           logger.NewTestLogger(),
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	vec, err := testClient(srv).Embed(context.Background(), "nomic-embed-text", "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	_, err := testClient(srv).Embed(context.Background(), "m", "text")
	require.Error(t, err)
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// 用文本长度编码位置，验证结果顺序
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{float32(len(req.Prompt))}})
	}))
	defer srv.Close()

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := testClient(srv).EmbedBatch(context.Background(), "m", texts)
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0])
	}
}

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		chunks := []chatResponse{
			{Message: models.ChatMessage{Role: "assistant", Content: "hel"}},
			{Message: models.ChatMessage{Role: "assistant", Content: "lo"}},
			{Done: true},
		}
		enc := json.NewEncoder(w)
		for _, c := range chunks {
			enc.Encode(c)
		}
	}))
	defer srv.Close()

	var got string
	err := testClient(srv).ChatStream(context.Background(), "m",
		[]models.ChatMessage{{Role: "user", Content: "hi"}},
		func(chunk string) error {
			got += chunk
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestChatStreamCallbackErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		for i := 0; i < 100; i++ {
			enc.Encode(chatResponse{Message: models.ChatMessage{Content: "x"}})
		}
		enc.Encode(chatResponse{Done: true})
	}))
	defer srv.Close()

	calls := 0
	err := testClient(srv).ChatStream(context.Background(), "m",
		[]models.ChatMessage{{Role: "user", Content: "hi"}},
		func(chunk string) error {
			calls++
			if calls == 3 {
				return fmt.Errorf("client gone")
			}
			return nil
		})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestPullProgressEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pull", r.URL.Path)
		events := []PullEvent{
			{Status: "pulling manifest"},
			{Status: "downloading", Digest: "sha256:abc", Total: 1000, Completed: 250},
			{Status: "downloading", Digest: "sha256:abc", Total: 1000, Completed: 1000},
			{Status: "success"},
		}
		enc := json.NewEncoder(w)
		for _, ev := range events {
			enc.Encode(ev)
		}
	}))
	defer srv.Close()

	var seen []PullEvent
	err := testClient(srv).Pull(context.Background(), "llama3.2:3b", func(ev PullEvent) error {
		seen = append(seen, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 4)
	// 下载进度单调不减
	assert.LessOrEqual(t, seen[1].Completed, seen[2].Completed)
	assert.Equal(t, "success", seen[3].Status)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[
			{"name":"llama3.2:3b","size":2019393189,"digest":"a80c4f17acd5","modified_at":"2025-06-01T10:00:00Z"},
			{"name":"nomic-embed-text","size":274302450,"digest":"0a109f422b47","modified_at":"2025-05-01T10:00:00Z"}
		]}`)
	}))
	defer srv.Close()

	infos, err := testClient(srv).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "llama3.2:3b", infos[0].Name)
	assert.Equal(t, int64(2019393189), infos[0].Size)
	assert.Equal(t, "2025-06-01T10:00:00Z", infos[0].ModifiedAt)
}

func TestErrorResponseSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'missing' not found"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv).Embed(context.Background(), "missing", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model 'missing' not found")
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		json.NewEncoder(w).Encode(generateResponse{Response: "generated", Done: true})
	}))
	defer srv.Close()

	out, err := testClient(srv).Generate(context.Background(), "m", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "generated", out)
}

func TestDeleteModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/delete", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, testClient(srv).DeleteModel(context.Background(), "old-model"))
}
