// Package service 实现了问答流水线的业务逻辑。
package service

import "strings"

// IsFollowUp 判定当前查询是否应相对上一轮对话来解释。
// 规则：会话记忆非空，且查询按空白切分后包含 "yes"/"no" 词元
// （大小写不敏感），或词元总数不超过 3 个。
// 该启发式对类似 "Why not?"、"yes please" 的简短答复生效，
// 不会误伤内容完整的新查询。
func IsFollowUp(query string, hasHistory bool) bool {
	if !hasHistory {
		return false
	}
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) <= 3 {
		return true
	}
	for _, f := range fields {
		if f == "yes" || f == "no" {
			return true
		}
	}
	return false
}
