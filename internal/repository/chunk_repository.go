package repository

import (
	"chatrag-go/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository 定义了文档分块在 MySQL 侧的数据访问接口。
// MySQL 中的分块行是权威副本，Elasticsearch 索引可随时由其重建。
type ChunkRepository interface {
	BatchCreate(chunks []*model.DocumentChunk) error
	DeleteByDocumentID(tenantID, documentID string) error
	FindByDocumentID(tenantID, documentID string) ([]model.DocumentChunk, error)
	ListDocuments(tenantID string) ([]model.DocumentSummary, error)
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) BatchCreate(chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.Create(chunks).Error
}

func (r *chunkRepository) DeleteByDocumentID(tenantID, documentID string) error {
	return r.db.Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Delete(&model.DocumentChunk{}).Error
}

func (r *chunkRepository) FindByDocumentID(tenantID, documentID string) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	err := r.db.Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Order("id ASC").
		Find(&chunks).Error
	return chunks, err
}

func (r *chunkRepository) ListDocuments(tenantID string) ([]model.DocumentSummary, error) {
	var summaries []model.DocumentSummary
	err := r.db.Model(&model.DocumentChunk{}).
		Select("document_id, document_name, COUNT(*) AS chunk_count").
		Where("tenant_id = ?", tenantID).
		Group("document_id, document_name").
		Order("document_name ASC").
		Scan(&summaries).Error
	return summaries, err
}
