package models

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source 检索命中的引用来源，随 sources 事件返回
type Source struct {
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Chat stream event types. The sources event, when present, is always
// emitted before any chunk event; the stream terminates with exactly one
// of done or error.
const (
	EventSources = "sources"
	EventChunk   = "chunk"
	EventError   = "error"
	EventDone    = "done"
)

// ChatEvent 查询流事件
type ChatEvent struct {
	Type    string   `json:"type"`
	Content string   `json:"content,omitempty"`
	Sources []Source `json:"sources,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ChatResult non-streaming 查询的聚合结果
type ChatResult struct {
	Message string   `json:"message"`
	Sources []Source `json:"sources"`
	Model   string   `json:"model"`
}

// ModelInfo 已安装的生成模型信息
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modifiedAt"`
	Digest     string `json:"digest"`
	IsActive   bool   `json:"isActive"`
}

// PullProgress 模型拉取进度
type PullProgress struct {
	Model     string `json:"model"`
	Status    string `json:"status"`
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
	Progress  int    `json:"progress"`
	Details   string `json:"details,omitempty"`
}
