package handler

import (
	"net/http"

	"chatrag-go/internal/service"
	"chatrag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DecisionHandler 处理查询路由请求：先由 LLM 分类查询类型，
// 文档问答在给定会话实例时直接走检索流水线，
// 动作与传感器查询把结构化决策交回客户端执行。
type DecisionHandler struct {
	routerService service.RouterService
	chatService   service.ChatService
}

// NewDecisionHandler 创建一个新的 DecisionHandler 实例。
func NewDecisionHandler(routerService service.RouterService, chatService service.ChatService) *DecisionHandler {
	return &DecisionHandler{
		routerService: routerService,
		chatService:   chatService,
	}
}

type decisionRequest struct {
	Query          string `json:"query" binding:"required"`
	TenantID       string `json:"tenantId"`
	ChatInstanceID string `json:"chatInstanceId"`
}

// Decide 是处理查询路由请求的 Gin 处理函数。
func (h *DecisionHandler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[DecisionHandler] 请求参数无效: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	decision, err := h.routerService.Route(c.Request.Context(), req.Query)
	if err != nil {
		writePipelineError(c, err)
		return
	}

	// 文档问答且带会话上下文：直接执行检索流水线并附带回答
	if decision.Type == service.RouteDocumentQuery && req.TenantID != "" && req.ChatInstanceID != "" {
		answer, err := h.chatService.Answer(c.Request.Context(), req.TenantID, req.ChatInstanceID, decision.Query)
		if err != nil {
			writePipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"decision": decision, "content": answer}, "message": "success"})
		return
	}

	log.Infof("[DecisionHandler] 查询路由完成, type: %s", decision.Type)
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"decision": decision}, "message": "success"})
}
