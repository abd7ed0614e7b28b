package repository

import (
	"context"

	"github.com/mautops/procurement-gin/internal/model"
	"gorm.io/gorm"
)

// PRHistoryRepository 历史记录仓储接口, 只提供追加和查询
type PRHistoryRepository interface {
	Append(ctx context.Context, entry *model.PRHistoryModel) error
	FindByRequestID(ctx context.Context, requestID string) ([]*model.PRHistoryModel, error)
}

// prHistoryRepository 历史记录仓储实现
type prHistoryRepository struct {
	db *gorm.DB
}

// NewPRHistoryRepository 创建历史记录仓储
func NewPRHistoryRepository(db *gorm.DB) PRHistoryRepository {
	return &prHistoryRepository{db: db}
}

// Append 追加历史记录
func (r *prHistoryRepository) Append(ctx context.Context, entry *model.PRHistoryModel) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByRequestID 按时间升序查找历史记录
func (r *prHistoryRepository) FindByRequestID(ctx context.Context, requestID string) ([]*model.PRHistoryModel, error) {
	var entries []*model.PRHistoryModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
