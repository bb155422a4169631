// Package prompt 负责把检索结果组装成带 token 预算约束的对话提示。
// 预算回退只丢弃排名最低的检索块，模板与查询本身永不截断。
package prompt

import (
	"fmt"

	"chatrag-go/internal/model"
	"chatrag-go/internal/rag"
	"chatrag-go/pkg/llm"
	"chatrag-go/pkg/log"
	"chatrag-go/pkg/tokenizer"
)

// Assembler 按模板族组装提示词，并保证总 token 数不超过模型上限。
type Assembler struct {
	counter   tokenizer.Counter
	maxTokens int
}

// NewAssembler 创建提示组装器，maxTokens 是提示部分允许的 token 上限。
func NewAssembler(counter tokenizer.Counter, maxTokens int) *Assembler {
	return &Assembler{counter: counter, maxTokens: maxTokens}
}

// BuildStandard 组装标准问答提示。
// previousResponse 非空时附加一致性指令（同一会话内重复提问场景）。
func (a *Assembler) BuildStandard(family, query string, results []model.SearchResultDTO, previousResponse string) ([]llm.Message, error) {
	base := defaultMessages(query)
	if family == FamilyHR {
		base = hrMessages(query)
	}
	if previousResponse != "" {
		base = append(base, consistencyMessage(previousResponse))
	}
	return a.fitBudget(base, results)
}

// BuildFollowUp 组装追问提示，transcript 是最近的会话文本。
func (a *Assembler) BuildFollowUp(transcript, query string, results []model.SearchResultDTO) ([]llm.Message, error) {
	return a.fitBudget(followUpMessages(transcript, query), results)
}

// fitBudget 附加检索块并执行预算回退：超限时从末尾（排名最低）
// 逐个丢块重新计数；零块仍超限则返回 PromptTooLargeError。
func (a *Assembler) fitBudget(base []llm.Message, results []model.SearchResultDTO) ([]llm.Message, error) {
	for {
		messages := a.render(base, results)
		total, err := a.counter.CountMessages(messages)
		if err != nil {
			return nil, fmt.Errorf("count prompt tokens: %w", err)
		}
		if total <= a.maxTokens {
			return messages, nil
		}
		if len(results) == 0 {
			return nil, &rag.PromptTooLargeError{Tokens: total, Limit: a.maxTokens}
		}
		log.Warnf("[Prompt] 提示 token 超限(%d > %d), 丢弃排名最低的检索块, 剩余 %d 块", total, a.maxTokens, len(results)-1)
		results = results[:len(results)-1]
	}
}

func (a *Assembler) render(base []llm.Message, results []model.SearchResultDTO) []llm.Message {
	messages := make([]llm.Message, 0, len(base)+len(results)+1)
	messages = append(messages, base...)
	if len(results) == 0 {
		return append(messages, noChunksMessage())
	}
	for i, r := range results {
		messages = append(messages, contextMessage(i+1, r.Text, r.DocumentName))
	}
	return messages
}
