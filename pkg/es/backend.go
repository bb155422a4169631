package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"chatrag-go/internal/model"
	"chatrag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// Backend 是检索流水线依赖的搜索后端边界。
// 词法与向量两路检索针对同一过滤范围独立执行，互不依赖。
type Backend interface {
	// CountFiltered 返回租户范围 + 元数据过滤后的候选分块数量。
	CountFiltered(ctx context.Context, tenantID string, filters map[string]string) (int, error)
	// LexicalSearch 按文本相关性（BM25）返回过滤范围内的前 k 个分块。
	LexicalSearch(ctx context.Context, tenantID, query string, filters map[string]string, k int) ([]model.SearchHit, error)
	// VectorSearch 按余弦相似度（1 - cosine_distance）返回过滤范围内的前 k 个分块。
	VectorSearch(ctx context.Context, tenantID string, vector []float32, filters map[string]string, k int) ([]model.SearchHit, error)
}

type esBackend struct {
	client    *elasticsearch.Client
	indexName string
}

// NewBackend 创建一个基于 Elasticsearch 的搜索后端。
func NewBackend(client *elasticsearch.Client, indexName string) Backend {
	return &esBackend{client: client, indexName: indexName}
}

// buildFilter 构造租户限定 + 元数据合取过滤子句。
// 每个元数据条件是大小写不敏感的包含匹配（icontains 语义）。
func buildFilter(tenantID string, filters map[string]string) []map[string]interface{} {
	clauses := []map[string]interface{}{
		{"term": map[string]interface{}{"tenant_id": tenantID}},
	}
	for key, value := range filters {
		clauses = append(clauses, map[string]interface{}{
			"wildcard": map[string]interface{}{
				"metadata." + key: map[string]interface{}{
					"value":            "*" + strings.ToLower(value) + "*",
					"case_insensitive": true,
				},
			},
		})
	}
	return clauses
}

// CountFiltered 对过滤范围执行 _count 查询。
func (b *esBackend) CountFiltered(ctx context.Context, tenantID string, filters map[string]string) (int, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": buildFilter(tenantID, filters),
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return 0, fmt.Errorf("failed to encode count query: %w", err)
	}

	res, err := b.client.Count(
		b.client.Count.WithContext(ctx),
		b.client.Count.WithIndex(b.indexName),
		b.client.Count.WithBody(&buf),
	)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch count failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchBackend] Elasticsearch count 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return 0, fmt.Errorf("elasticsearch count returned an error: %s", res.Status())
	}

	var countResp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return countResp.Count, nil
}

// LexicalSearch 在过滤范围内执行 BM25 match 检索。
func (b *esBackend) LexicalSearch(ctx context.Context, tenantID, query string, filters map[string]string, k int) ([]model.SearchHit, error) {
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match": map[string]interface{}{
						"text": query,
					},
				},
				"filter": buildFilter(tenantID, filters),
			},
		},
		"size": k,
	}
	return b.search(ctx, esQuery, 0)
}

// VectorSearch 在过滤范围内执行 script_score 余弦检索。
// cosineSimilarity 加 1.0 保证脚本得分非负，取回后再减回去，
// 得到与 1 - cosine_distance 一致的相似度。
func (b *esBackend) VectorSearch(ctx context.Context, tenantID string, vector []float32, filters map[string]string, k int) ([]model.SearchHit, error) {
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{
					"bool": map[string]interface{}{
						"filter": buildFilter(tenantID, filters),
					},
				},
				"script": map[string]interface{}{
					"source": "cosineSimilarity(params.query_vector, 'vector') + 1.0",
					"params": map[string]interface{}{
						"query_vector": vector,
					},
				},
			},
		},
		"size": k,
	}
	return b.search(ctx, esQuery, -1.0)
}

// search 执行查询并解析命中结果，scoreOffset 用于还原脚本得分。
func (b *esBackend) search(ctx context.Context, esQuery map[string]interface{}, scoreOffset float64) ([]model.SearchHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := b.client.Search(
		b.client.Search.WithContext(ctx),
		b.client.Search.WithIndex(b.indexName),
		b.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchBackend] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]model.SearchHit, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		hits = append(hits, model.SearchHit{
			ChunkUID:     hit.Source.ChunkUID,
			DocumentID:   hit.Source.DocumentID,
			DocumentName: hit.Source.DocumentName,
			PageLabel:    hit.Source.PageLabel,
			Text:         hit.Source.Text,
			Score:        hit.Score + scoreOffset,
		})
	}
	return hits, nil
}
