// Package model 包含了应用的数据模型定义。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MetadataMap 是分块的自由格式元数据（属性名 -> 值），在 MySQL 中以 JSON 存储。
type MetadataMap map[string]string

// Value 实现 driver.Valuer，将元数据序列化为 JSON。
func (m MetadataMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner，从 JSON 反序列化元数据。
func (m *MetadataMap) Scan(value interface{}) error {
	if value == nil {
		*m = MetadataMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported metadata column type")
	}
	if len(data) == 0 {
		*m = MetadataMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// DocumentChunk 代表存储在 MySQL 中的文档分块记录。
// 分块由摄取流水线写入，检索流水线只读；删除文档时一并删除。
type DocumentChunk struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	ChunkUID     string      `gorm:"uniqueIndex;size:64;not null" json:"chunkUid"`
	DocumentID   string      `gorm:"index;size:255;not null" json:"documentId"`
	DocumentName string      `gorm:"size:255;not null" json:"documentName"`
	PageLabel    string      `gorm:"size:255" json:"pageLabel"`
	TenantID     string      `gorm:"index;size:255;not null" json:"tenantId"`
	ChunkType    string      `gorm:"size:64;default:document" json:"chunkType"`
	TextContent  string      `gorm:"type:text;not null" json:"textContent"`
	Metadata     MetadataMap `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"createdAt"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}

// DocumentSummary 是按文档聚合的分块统计视图。
type DocumentSummary struct {
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
	ChunkCount   int64  `json:"chunkCount"`
}

// EsChunk 代表索引到 Elasticsearch 的分块结构。
// 不变式：同一租户范围内所有分块的向量维度一致。
type EsChunk struct {
	ChunkUID     string            `json:"chunk_uid"`
	DocumentID   string            `json:"document_id"`
	DocumentName string            `json:"document_name"`
	PageLabel    string            `json:"page_label"`
	TenantID     string            `json:"tenant_id"`
	ChunkType    string            `json:"chunk_type"`
	Text         string            `json:"text"`
	Vector       []float32         `json:"vector"`
	ModelVersion string            `json:"model_version"`
	Metadata     map[string]string `json:"metadata"`
}
