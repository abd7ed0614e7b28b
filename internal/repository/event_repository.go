package repository

import (
	"context"
	"time"

	"github.com/mautops/procurement-gin/internal/model"
	"gorm.io/gorm"
)

// EventRepository 事件仓储接口
type EventRepository interface {
	Save(ctx context.Context, event *model.EventModel) error
	MarkStatus(ctx context.Context, id, status string, retryCount int, lastErr string) error
	FindPending(ctx context.Context, limit int) ([]*model.EventModel, error)
	FindByResource(ctx context.Context, resourceID string) ([]*model.EventModel, error)
}

// eventRepository 事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(ctx context.Context, event *model.EventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(event).Error
}

// MarkStatus 更新事件投递状态
func (r *eventRepository) MarkStatus(ctx context.Context, id, status string, retryCount int, lastErr string) error {
	return r.db.WithContext(ctx).
		Model(&model.EventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retryCount,
			"last_error":  lastErr,
			"updated_at":  time.Now(),
		}).Error
}

// FindPending 查找待处理的事件
func (r *eventRepository) FindPending(ctx context.Context, limit int) ([]*model.EventModel, error) {
	var events []*model.EventModel
	query := r.db.WithContext(ctx).Where("status = ?", model.EventStatusPending).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}

// FindByResource 查找资源相关的事件
func (r *eventRepository) FindByResource(ctx context.Context, resourceID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.WithContext(ctx).Where("resource_id = ?", resourceID).Order("created_at ASC").Find(&events).Error
	return events, err
}
