// Package tasks 定义了通过 Kafka 传递的异步任务结构。
package tasks

// ChunkPayload 是摄取任务中的单个文本分块。
type ChunkPayload struct {
	PageLabel string            `json:"page_label"`
	ChunkType string            `json:"chunk_type"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata"`
}

// ChunkIngestTask 是一个文档的分块摄取任务。
// 任务以文档为粒度，消费侧先清理旧分块再写入，保证重复投递幂等。
type ChunkIngestTask struct {
	TenantID     string         `json:"tenant_id"`
	DocumentID   string         `json:"document_id"`
	DocumentName string         `json:"document_name"`
	Chunks       []ChunkPayload `json:"chunks"`
}
