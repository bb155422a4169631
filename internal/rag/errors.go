// Package rag 定义了问答流水线各阶段的错误类别。
// 任一阶段失败都会中止本次请求并以对应类别上抛，不做降级兜底：
// 把检索或抽取失败伪装成正常回答会让质量回归变得不可见。
package rag

import "fmt"

// EmbeddingError 表示向量化调用失败或返回了意外维度的向量。
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// ExtractionError 表示元数据抽取未能从模型响应中解析出 JSON 对象。
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("metadata extraction: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// SearchError 表示搜索后端不可达或返回了格式错误的响应。
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string { return fmt.Sprintf("search: %v", e.Err) }
func (e *SearchError) Unwrap() error { return e.Err }

// RerankError 表示重排序调用失败。重排序失败对请求是致命的，
// 静默回退到未重排的顺序会在无信号的情况下降低回答质量。
type RerankError struct {
	Err error
}

func (e *RerankError) Error() string { return fmt.Sprintf("rerank: %v", e.Err) }
func (e *RerankError) Unwrap() error { return e.Err }

// PromptTooLargeError 表示在丢弃全部检索分块后，提示词仍超出 token 预算。
type PromptTooLargeError struct {
	Tokens int
	Limit  int
}

func (e *PromptTooLargeError) Error() string {
	return fmt.Sprintf("prompt too large: %d tokens exceeds limit %d with zero chunks remaining", e.Tokens, e.Limit)
}

// RoutingError 表示查询路由分类未能从模型响应中解析出合法的决策。
type RoutingError struct {
	Err error
}

func (e *RoutingError) Error() string { return fmt.Sprintf("query routing: %v", e.Err) }
func (e *RoutingError) Unwrap() error { return e.Err }

// GenerationError 表示最终回答生成调用失败。
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }
