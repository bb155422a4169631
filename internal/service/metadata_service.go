package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"chatrag-go/internal/rag"
	"chatrag-go/internal/tenant"
	"chatrag-go/pkg/llm"
	"chatrag-go/pkg/log"
)

// jsonObjectPattern 从模型响应中截取第一个 '{' 到最后一个 '}' 的片段，
// 容忍模型在 JSON 前后输出的解释性文字。
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// MetadataService 从用户查询中抽取租户定义的元数据属性，
// 产出的键值对作为检索过滤条件。
type MetadataService interface {
	Extract(ctx context.Context, tenantCfg tenant.Config, transcript, query string) (map[string]string, error)
}

type metadataService struct {
	llmClient llm.Client
}

// NewMetadataService 创建元数据抽取服务。
func NewMetadataService(llmClient llm.Client) MetadataService {
	return &metadataService{llmClient: llmClient}
}

// Extract 调用 LLM 抽取元数据。租户未定义任何属性时跳过调用，
// 直接返回空过滤条件。
func (s *metadataService) Extract(ctx context.Context, tenantCfg tenant.Config, transcript, query string) (map[string]string, error) {
	if len(tenantCfg.Attributes) == 0 {
		return map[string]string{}, nil
	}

	messages := buildExtractionMessages(tenantCfg, transcript, query)
	raw, err := s.llmClient.Complete(ctx, messages)
	if err != nil {
		return nil, &rag.ExtractionError{Err: err}
	}

	filters, err := parseExtractionResponse(raw)
	if err != nil {
		return nil, &rag.ExtractionError{Err: err}
	}

	log.Infof("[Metadata] 租户 %s 抽取到 %d 个过滤条件", tenantCfg.ID, len(filters))
	return filters, nil
}

// buildExtractionMessages 组装抽取提示：查询与会话文本在前，
// 随后是示例 JSON 骨架与逐属性的抽取指令。
func buildExtractionMessages(tenantCfg tenant.Config, transcript, query string) []llm.Message {
	messages := []llm.Message{
		{Role: "system", Content: "This is a RAG chatbot using OpenAI to generate responses."},
		{Role: "system", Content: "This is the current query done by the user: " + query},
		{Role: "system", Content: "Here is the most recent conversation history for your reference:\n" + transcript},
		{Role: "system", Content: "You do not need to answer the query. Your task is to extract metadata attributes from the query, which will later be used to filter the document search."},
		{Role: "system", Content: "Respond with a single JSON object following this structure, where every attribute the query does not mention is null:\n" + sampleJSON(tenantCfg.Attributes)},
	}
	for _, attr := range tenantCfg.Attributes {
		messages = append(messages, llm.Message{
			Role:    "system",
			Content: fmt.Sprintf("%s: %s", attr.Prompt, attr.Format),
		})
	}
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: "Within the response JSON object, provide only the metadata attributes and their values. Do not add any other keys or commentary.",
	})
	return messages
}

// sampleJSON 由租户属性生成全 null 的示例对象，保持属性声明顺序。
func sampleJSON(attributes []tenant.Attribute) string {
	var b strings.Builder
	b.WriteString("{")
	for i, attr := range attributes {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: null", attr.Name)
	}
	b.WriteString("}")
	return b.String()
}

// parseExtractionResponse 从模型响应中恢复 JSON 对象并过滤 null 值。
func parseExtractionResponse(raw string) (map[string]string, error) {
	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return nil, errors.New("no JSON object found in extraction response")
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON in extraction response: %w", err)
	}

	filters := make(map[string]string, len(parsed))
	for key, value := range parsed {
		if value == nil {
			continue
		}
		filters[key] = fmt.Sprintf("%v", value)
	}
	return filters, nil
}
