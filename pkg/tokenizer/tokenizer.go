// Package tokenizer 提供与目标模型一致的消息 token 计数。
package tokenizer

import (
	"fmt"

	"chatrag-go/pkg/llm"

	"github.com/pkoukk/tiktoken-go"
)

// 每条消息的固定封装开销（role/content 包装与分隔符），与目标模型的
// 聊天消息打包方式对齐。
const tokensPerMessage = 9

// Counter 计算一组角色消息在目标模型下占用的 token 总数。
type Counter interface {
	CountMessages(messages []llm.Message) (int, error)
}

type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter 为指定模型创建一个基于 tiktoken 的计数器。
func NewCounter(model string) (Counter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding for model %s: %w", model, err)
	}
	return &tiktokenCounter{encoding: encoding}, nil
}

// CountMessages 逐条累加消息开销与 role/content 的编码长度。
func (c *tiktokenCounter) CountMessages(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += tokensPerMessage
		total += len(c.encoding.Encode(m.Role, nil, nil))
		total += len(c.encoding.Encode(m.Content, nil, nil))
	}
	return total, nil
}
