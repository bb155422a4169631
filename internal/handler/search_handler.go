package handler

import (
	"net/http"
	"strconv"

	"chatrag-go/internal/service"
	"chatrag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
	defaultTopK   int
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService, defaultTopK int) *SearchHandler {
	if defaultTopK <= 0 {
		defaultTopK = 12
	}
	return &SearchHandler{
		searchService: searchService,
		defaultTopK:   defaultTopK,
	}
}

// HybridSearch 是处理混合搜索请求的 Gin 处理函数。
// 过滤条件通过 filter.<attr>=<value> 形式的查询参数传入。
func (h *SearchHandler) HybridSearch(c *gin.Context) {
	query := c.Query("query")
	tenantID := c.Query("tenantId")
	log.Infof("[SearchHandler] 收到混合搜索请求, tenantId: %s, query: %s", tenantID, query)

	if query == "" || tenantID == "" {
		log.Warnf("[SearchHandler] 搜索请求失败: query 或 tenantId 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的查询参数"})
		return
	}
	topK := h.defaultTopK
	if topKStr := c.Query("topK"); topKStr != "" {
		if parsed, err := strconv.Atoi(topKStr); err == nil && parsed > 0 {
			topK = parsed
		}
	}

	filters := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(key) > 7 && key[:7] == "filter." && len(values) > 0 && values[0] != "" {
			filters[key[7:]] = values[0]
		}
	}

	results, err := h.searchService.HybridSearch(c.Request.Context(), tenantID, query, filters, topK)
	if err != nil {
		log.Errorf("[SearchHandler] 混合搜索服务返回错误, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索失败"})
		return
	}

	log.Infof("[SearchHandler] 混合搜索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": results, "message": "success"})
}
