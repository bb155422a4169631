package handler

import (
	"net/http"

	"chatrag-go/internal/service"
	"chatrag-go/pkg/log"
	"chatrag-go/pkg/tasks"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 处理文档分块的摄取、删除与查询请求。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

type chunkPayload struct {
	PageLabel string            `json:"pageLabel"`
	ChunkType string            `json:"chunkType"`
	Text      string            `json:"text" binding:"required"`
	Metadata  map[string]string `json:"metadata"`
}

type submitChunksRequest struct {
	TenantID     string         `json:"tenantId" binding:"required"`
	DocumentID   string         `json:"documentId" binding:"required"`
	DocumentName string         `json:"documentName" binding:"required"`
	Chunks       []chunkPayload `json:"chunks" binding:"required,min=1"`
}

// SubmitChunks 接收一个文档的分块并投递到摄取队列，异步处理。
func (h *DocumentHandler) SubmitChunks(c *gin.Context) {
	var req submitChunksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[DocumentHandler] 摄取请求参数无效: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	task := tasks.ChunkIngestTask{
		TenantID:     req.TenantID,
		DocumentID:   req.DocumentID,
		DocumentName: req.DocumentName,
		Chunks:       make([]tasks.ChunkPayload, 0, len(req.Chunks)),
	}
	for _, chunk := range req.Chunks {
		task.Chunks = append(task.Chunks, tasks.ChunkPayload{
			PageLabel: chunk.PageLabel,
			ChunkType: chunk.ChunkType,
			Text:      chunk.Text,
			Metadata:  chunk.Metadata,
		})
	}

	if err := h.documentService.SubmitChunks(task); err != nil {
		log.Errorf("[DocumentHandler] 投递摄取任务失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "投递摄取任务失败"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"code": 202, "data": gin.H{"documentId": req.DocumentID, "chunks": len(task.Chunks)}, "message": "accepted"})
}

// DeleteDocument 删除文档的全部分块（MySQL 与 Elasticsearch）。
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	documentID := c.Param("documentId")
	tenantID := c.Query("tenantId")
	if documentID == "" || tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "documentId 或 tenantId 参数为空"})
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), tenantID, documentID); err != nil {
		log.Errorf("[DocumentHandler] 删除文档失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除文档失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": nil, "message": "success"})
}

// ListDocuments 列出租户已摄取的文档及分块数量。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId 参数为空"})
		return
	}

	documents, err := h.documentService.ListDocuments(tenantID)
	if err != nil {
		log.Errorf("[DocumentHandler] 查询文档列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询文档列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": documents, "message": "success"})
}
