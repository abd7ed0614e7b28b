package repository

import (
	"context"

	"github.com/mautops/procurement-gin/internal/model"
	"gorm.io/gorm"
)

// PRItemRepository 采购申请行项仓储接口
type PRItemRepository interface {
	FindByRequestID(ctx context.Context, requestID string) ([]*model.PRItemModel, error)
	// ReplaceForRequest 用 items 整体替换申请的全部行项
	ReplaceForRequest(ctx context.Context, requestID string, items []*model.PRItemModel) error
	Save(ctx context.Context, item *model.PRItemModel) error
}

// prItemRepository 行项仓储实现
type prItemRepository struct {
	db *gorm.DB
}

// NewPRItemRepository 创建行项仓储
func NewPRItemRepository(db *gorm.DB) PRItemRepository {
	return &prItemRepository{db: db}
}

// FindByRequestID 按排序号查找申请的行项
func (r *prItemRepository) FindByRequestID(ctx context.Context, requestID string) ([]*model.PRItemModel, error) {
	var items []*model.PRItemModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("sort_order ASC, created_at ASC").
		Find(&items).Error
	return items, err
}

// ReplaceForRequest 删除旧行项后写入新行项, 调用方负责事务
func (r *prItemRepository) ReplaceForRequest(ctx context.Context, requestID string, items []*model.PRItemModel) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("request_id = ?", requestID).Delete(&model.PRItemModel{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.Create(&items).Error
}

// Save 保存行项
func (r *prItemRepository) Save(ctx context.Context, item *model.PRItemModel) error {
	return r.db.WithContext(ctx).Save(item).Error
}
