// Package handler 包含了所有 HTTP 请求的处理器。
package handler

import (
	"errors"
	"net/http"

	"chatrag-go/internal/rag"
	"chatrag-go/internal/repository"
	"chatrag-go/internal/service"
	"chatrag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 处理同步问答请求。
type ChatHandler struct {
	chatService service.ChatService
	historyRepo repository.HistoryRepository
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService, historyRepo repository.HistoryRepository) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		historyRepo: historyRepo,
	}
}

type chatRequest struct {
	Query          string `json:"query" binding:"required"`
	TenantID       string `json:"tenantId" binding:"required"`
	ChatInstanceID string `json:"chatInstanceId" binding:"required"`
}

// Chat 是处理问答请求的 Gin 处理函数。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[ChatHandler] 请求参数无效: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	log.Infof("[ChatHandler] 收到问答请求, tenantId: %s, chatInstanceId: %s", req.TenantID, req.ChatInstanceID)

	instance, err := h.historyRepo.GetInstance(req.ChatInstanceID)
	if err != nil {
		log.Errorf("[ChatHandler] 查询会话实例失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询会话实例失败"})
		return
	}
	if instance == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话实例不存在"})
		return
	}
	if instance.TenantID != req.TenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话实例不属于该租户"})
		return
	}

	answer, err := h.chatService.Answer(c.Request.Context(), req.TenantID, req.ChatInstanceID, req.Query)
	if err != nil {
		writePipelineError(c, err)
		return
	}

	log.Infof("[ChatHandler] 问答成功, chatInstanceId: %s", req.ChatInstanceID)
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"content": answer}, "message": "success"})
}

// writePipelineError 将流水线错误类别映射为 HTTP 响应。
// 各阶段失败都是服务端问题，统一 500，但响应里带上失败的阶段。
func writePipelineError(c *gin.Context, err error) {
	log.Errorf("[ChatHandler] 问答流水线返回错误: %v", err)

	var (
		embeddingErr  *rag.EmbeddingError
		extractionErr *rag.ExtractionError
		searchErr     *rag.SearchError
		rerankErr     *rag.RerankError
		promptErr     *rag.PromptTooLargeError
		generationErr *rag.GenerationError
		routingErr    *rag.RoutingError
	)
	switch {
	case errors.As(err, &embeddingErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询向量化失败"})
	case errors.As(err, &extractionErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "元数据抽取失败"})
	case errors.As(err, &searchErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "文档检索失败"})
	case errors.As(err, &rerankErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "结果重排序失败"})
	case errors.As(err, &promptErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询内容超出模型上下文限制"})
	case errors.As(err, &generationErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "回答生成失败"})
	case errors.As(err, &routingErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询路由分类失败"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "问答处理失败"})
	}
}
