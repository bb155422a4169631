package model

import "time"

// ChatMessage 代表会话记忆中的单条消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatInstance 代表一个会话实例，作为记忆与持久化历史的外键。
type ChatInstance struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID  string    `gorm:"index;size:255;not null" json:"tenantId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (ChatInstance) TableName() string {
	return "chat_instances"
}

// ChatHistory 代表一次持久化的问答交互，用于审计与重复问题一致性检查。
type ChatHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ChatInstanceID string    `gorm:"index;size:64;not null" json:"chatInstanceId"`
	TenantID       string    `gorm:"index;size:255;not null" json:"tenantId"`
	UserQuery      string    `gorm:"type:text;not null" json:"userQuery"`
	Response       string    `gorm:"type:text;not null" json:"response"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (ChatHistory) TableName() string {
	return "chat_history"
}
