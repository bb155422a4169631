package service

import (
	"context"
	"fmt"

	"chatrag-go/internal/model"
	"chatrag-go/internal/repository"
	"chatrag-go/pkg/es"
	"chatrag-go/pkg/kafka"
	"chatrag-go/pkg/log"
	"chatrag-go/pkg/tasks"
)

// DocumentService 管理文档分块的摄取与删除。
// 摄取是异步的：接口只负责投递任务，向量化与索引由消费侧完成。
type DocumentService interface {
	// SubmitChunks 将一个文档的分块投递到摄取队列。
	SubmitChunks(task tasks.ChunkIngestTask) error
	// DeleteDocument 同步删除文档在 MySQL 与 Elasticsearch 中的全部分块。
	DeleteDocument(ctx context.Context, tenantID, documentID string) error
	ListDocuments(tenantID string) ([]model.DocumentSummary, error)
}

type documentService struct {
	chunkRepo repository.ChunkRepository
	indexName string
}

// NewDocumentService 创建文档管理服务。
func NewDocumentService(chunkRepo repository.ChunkRepository, indexName string) DocumentService {
	return &documentService{chunkRepo: chunkRepo, indexName: indexName}
}

func (s *documentService) SubmitChunks(task tasks.ChunkIngestTask) error {
	if err := kafka.ProduceIngestTask(task); err != nil {
		return fmt.Errorf("投递摄取任务失败: %w", err)
	}
	log.Infof("[Document] 摄取任务已投递: DocumentID=%s, 分块数=%d", task.DocumentID, len(task.Chunks))
	return nil
}

func (s *documentService) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	if err := s.chunkRepo.DeleteByDocumentID(tenantID, documentID); err != nil {
		return fmt.Errorf("删除文档分块记录失败: %w", err)
	}
	if err := es.DeleteByDocumentID(ctx, s.indexName, tenantID, documentID); err != nil {
		return fmt.Errorf("删除文档索引失败: %w", err)
	}
	log.Infof("[Document] 文档已删除: TenantID=%s, DocumentID=%s", tenantID, documentID)
	return nil
}

func (s *documentService) ListDocuments(tenantID string) ([]model.DocumentSummary, error) {
	return s.chunkRepo.ListDocuments(tenantID)
}
