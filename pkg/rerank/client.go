// Package rerank provides a client for cross-encoder rerank services.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"chatrag-go/internal/config"
	"chatrag-go/pkg/log"
)

// Client defines the interface for a rerank client.
type Client interface {
	// Rerank 对给定查询与文档列表打分，返回按相关性降序排列的文档下标。
	// 返回的排列可能截断；调用方按该顺序重排候选列表。
	Rerank(ctx context.Context, query string, documents []string) ([]int, error)
}

type cohereCompatibleClient struct {
	cfg    config.RerankConfig
	client *http.Client
}

// NewClient creates a new rerank client based on the provider in the config.
func NewClient(cfg config.RerankConfig) Client {
	return &cohereCompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank calls the Cohere-compatible rerank API with the full candidate list.
func (c *cohereCompatibleClient) Rerank(ctx context.Context, query string, documents []string) ([]int, error) {
	log.Infof("[RerankClient] 开始调用 Rerank API, model: %s, documents: %d", c.cfg.Model, len(documents))
	reqBody := rerankRequest{
		Model:     c.cfg.Model,
		Query:     query,
		Documents: documents,
		TopN:      len(documents),
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/rerank", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[RerankClient] 调用 Rerank API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call rerank api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var rerankResp rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	indices := make([]int, 0, len(rerankResp.Results))
	for _, r := range rerankResp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("rerank api returned out-of-range index: %d", r.Index)
		}
		indices = append(indices, r.Index)
	}

	log.Infof("[RerankClient] Rerank 成功, 返回 %d 个排序下标", len(indices))
	return indices, nil
}
