package repository

import (
	"context"

	"github.com/mautops/procurement-gin/internal/model"
	"gorm.io/gorm"
)

// PurchaseOrderRepository 采购订单仓储接口
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *model.PurchaseOrderModel) error
	FindByID(ctx context.Context, id string) (*model.PurchaseOrderModel, error)
	FindByRequestID(ctx context.Context, requestID string) ([]*model.PurchaseOrderModel, error)
	FindNumbersWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// purchaseOrderRepository 采购订单仓储实现
type purchaseOrderRepository struct {
	db *gorm.DB
}

// NewPurchaseOrderRepository 创建采购订单仓储
func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

// Create 创建采购订单
func (r *purchaseOrderRepository) Create(ctx context.Context, po *model.PurchaseOrderModel) error {
	return r.db.WithContext(ctx).Create(po).Error
}

// FindByID 根据 ID 查找采购订单
func (r *purchaseOrderRepository) FindByID(ctx context.Context, id string) (*model.PurchaseOrderModel, error) {
	var po model.PurchaseOrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

// FindByRequestID 查找采购申请生成的订单
func (r *purchaseOrderRepository) FindByRequestID(ctx context.Context, requestID string) ([]*model.PurchaseOrderModel, error) {
	var list []*model.PurchaseOrderModel
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("created_at ASC").Find(&list).Error
	return list, err
}

// FindNumbersWithPrefix 查找以 prefix 开头的订单编号
func (r *purchaseOrderRepository) FindNumbersWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&model.PurchaseOrderModel{}).
		Where("po_number LIKE ?", prefix+"%").
		Pluck("po_number", &numbers).Error
	return numbers, err
}
