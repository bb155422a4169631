// Package repository 封装了对 MySQL 的数据访问。
package repository

import (
	"errors"

	"chatrag-go/internal/model"

	"gorm.io/gorm"
)

// HistoryRepository 定义了会话实例与问答历史的持久化接口。
type HistoryRepository interface {
	CreateInstance(instance *model.ChatInstance) error
	GetInstance(id string) (*model.ChatInstance, error)
	ListInstancesByTenant(tenantID string) ([]model.ChatInstance, error)
	CreateTurn(turn *model.ChatHistory) error
	// FindRecentTurns 按时间倒序返回实例最近的 limit 条问答记录。
	FindRecentTurns(instanceID string, limit int) ([]model.ChatHistory, error)
	// FindLatestByExactQuery 查找同一实例内与 query 完全一致
	// （大小写不敏感）的最近一条历史记录；未命中返回 (nil, nil)。
	FindLatestByExactQuery(instanceID, query string) (*model.ChatHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建一个 HistoryRepository 实例。
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) CreateInstance(instance *model.ChatInstance) error {
	return r.db.Create(instance).Error
}

func (r *historyRepository) GetInstance(id string) (*model.ChatInstance, error) {
	var instance model.ChatInstance
	err := r.db.Where("id = ?", id).First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &instance, nil
}

func (r *historyRepository) ListInstancesByTenant(tenantID string) ([]model.ChatInstance, error) {
	var instances []model.ChatInstance
	err := r.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&instances).Error
	return instances, err
}

func (r *historyRepository) CreateTurn(turn *model.ChatHistory) error {
	return r.db.Create(turn).Error
}

func (r *historyRepository) FindRecentTurns(instanceID string, limit int) ([]model.ChatHistory, error) {
	var turns []model.ChatHistory
	err := r.db.Where("chat_instance_id = ?", instanceID).
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error
	return turns, err
}

func (r *historyRepository) FindLatestByExactQuery(instanceID, query string) (*model.ChatHistory, error) {
	var turn model.ChatHistory
	err := r.db.Where("chat_instance_id = ? AND LOWER(user_query) = LOWER(?)", instanceID, query).
		Order("id DESC").
		First(&turn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &turn, nil
}
