// Package pipeline 实现了文档分块的异步摄取流水线。
package pipeline

import (
	"context"
	"fmt"

	"chatrag-go/internal/model"
	"chatrag-go/internal/repository"
	"chatrag-go/pkg/embedding"
	"chatrag-go/pkg/es"
	"chatrag-go/pkg/log"
	"chatrag-go/pkg/tasks"
)

// Processor 消费分块摄取任务：向量化 -> MySQL 落库 -> Elasticsearch 索引。
// 处理以文档为粒度幂等：先清理该文档的旧分块再写入新分块。
type Processor struct {
	chunkRepo       repository.ChunkRepository
	embeddingClient embedding.Client
	indexName       string
	modelVersion    string
}

// NewProcessor 创建摄取处理器。modelVersion 随分块写入索引，
// 用于区分不同向量模型产出的分块。
func NewProcessor(chunkRepo repository.ChunkRepository, embeddingClient embedding.Client, indexName, modelVersion string) *Processor {
	return &Processor{
		chunkRepo:       chunkRepo,
		embeddingClient: embeddingClient,
		indexName:       indexName,
		modelVersion:    modelVersion,
	}
}

// Process 处理单个文档的摄取任务。
func (p *Processor) Process(ctx context.Context, task tasks.ChunkIngestTask) error {
	log.Infof("[Pipeline] 开始摄取文档: DocumentID=%s, 分块数=%d", task.DocumentID, len(task.Chunks))

	// 1. 清理旧数据，保证任务重复投递时结果一致。
	if err := p.chunkRepo.DeleteByDocumentID(task.TenantID, task.DocumentID); err != nil {
		return fmt.Errorf("清理文档旧分块失败: %w", err)
	}
	if err := es.DeleteByDocumentID(ctx, p.indexName, task.TenantID, task.DocumentID); err != nil {
		return fmt.Errorf("清理文档旧索引失败: %w", err)
	}

	// 2. 逐块向量化并组装记录。
	rows := make([]*model.DocumentChunk, 0, len(task.Chunks))
	esChunks := make([]model.EsChunk, 0, len(task.Chunks))
	for i, chunk := range task.Chunks {
		vector, err := p.embeddingClient.CreateEmbedding(ctx, chunk.Text)
		if err != nil {
			return fmt.Errorf("分块向量化失败 (index %d): %w", i, err)
		}

		chunkUID := fmt.Sprintf("%s_%d", task.DocumentID, i)
		chunkType := chunk.ChunkType
		if chunkType == "" {
			chunkType = "document"
		}

		rows = append(rows, &model.DocumentChunk{
			ChunkUID:     chunkUID,
			DocumentID:   task.DocumentID,
			DocumentName: task.DocumentName,
			PageLabel:    chunk.PageLabel,
			TenantID:     task.TenantID,
			ChunkType:    chunkType,
			TextContent:  chunk.Text,
			Metadata:     chunk.Metadata,
		})
		esChunks = append(esChunks, model.EsChunk{
			ChunkUID:     chunkUID,
			DocumentID:   task.DocumentID,
			DocumentName: task.DocumentName,
			PageLabel:    chunk.PageLabel,
			TenantID:     task.TenantID,
			ChunkType:    chunkType,
			Text:         chunk.Text,
			Vector:       vector,
			ModelVersion: p.modelVersion,
			Metadata:     chunk.Metadata,
		})
	}

	// 3. MySQL 落库。
	if err := p.chunkRepo.BatchCreate(rows); err != nil {
		return fmt.Errorf("分块落库失败: %w", err)
	}

	// 4. 索引到 Elasticsearch。
	for _, esChunk := range esChunks {
		if err := es.IndexChunk(ctx, p.indexName, esChunk); err != nil {
			return fmt.Errorf("分块索引失败 (chunk_uid %s): %w", esChunk.ChunkUID, err)
		}
	}

	log.Infof("[Pipeline] 文档摄取完成: DocumentID=%s, 写入 %d 个分块", task.DocumentID, len(rows))
	return nil
}
