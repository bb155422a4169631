package handler

import (
	"net/http"
	"strconv"

	"chatrag-go/internal/model"
	"chatrag-go/internal/repository"
	"chatrag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HistoryHandler 处理会话实例与问答历史相关的请求。
type HistoryHandler struct {
	historyRepo  repository.HistoryRepository
	historyLimit int
}

// NewHistoryHandler 创建一个新的 HistoryHandler 实例。
func NewHistoryHandler(historyRepo repository.HistoryRepository, historyLimit int) *HistoryHandler {
	if historyLimit <= 0 {
		historyLimit = 3
	}
	return &HistoryHandler{historyRepo: historyRepo, historyLimit: historyLimit}
}

type createInstanceRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
}

// CreateInstance 创建一个新的会话实例并返回其 ID。
func (h *HistoryHandler) CreateInstance(c *gin.Context) {
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	instance := &model.ChatInstance{
		ID:       uuid.NewString(),
		TenantID: req.TenantID,
	}
	if err := h.historyRepo.CreateInstance(instance); err != nil {
		log.Errorf("[HistoryHandler] 创建会话实例失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建会话实例失败"})
		return
	}

	log.Infof("[HistoryHandler] 会话实例创建成功, id: %s, tenantId: %s", instance.ID, req.TenantID)
	c.JSON(http.StatusCreated, gin.H{"code": 201, "data": instance, "message": "success"})
}

// ListInstances 列出租户的全部会话实例。
func (h *HistoryHandler) ListInstances(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId 参数为空"})
		return
	}

	instances, err := h.historyRepo.ListInstancesByTenant(tenantID)
	if err != nil {
		log.Errorf("[HistoryHandler] 查询会话实例列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询会话实例列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": instances, "message": "success"})
}

// GetHistory 返回会话实例最近的问答历史，按时间倒序。
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	instanceID := c.Query("chatInstanceId")
	if instanceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatInstanceId 参数为空"})
		return
	}

	limit := h.historyLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	turns, err := h.historyRepo.FindRecentTurns(instanceID, limit)
	if err != nil {
		log.Errorf("[HistoryHandler] 查询问答历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询问答历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": turns, "message": "success"})
}
