package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFollowUp(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		hasHistory bool
		want       bool
	}{
		{"无历史时永远不是追问", "yes", false, false},
		{"短查询是追问", "why not?", true, true},
		{"恰好三个词元是追问", "tell me more", true, true},
		{"四个词元不是追问", "tell me much more", true, false},
		{"包含 yes 词元是追问", "yes please explain that policy again", true, true},
		{"包含 no 词元是追问", "no that is not what I meant at all", true, true},
		{"大小写不敏感", "YES please explain that policy again", true, true},
		{"yes 作为子串不算词元", "yesterday we discussed the vacation policy rules", true, false},
		{"完整的新查询不是追问", "what is the notice period for contract termination", true, false},
		{"空查询按零词元处理", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFollowUp(tt.query, tt.hasHistory))
		})
	}
}
