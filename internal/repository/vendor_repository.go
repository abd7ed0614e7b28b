package repository

import (
	"context"

	"github.com/mautops/procurement-gin/internal/model"
	"gorm.io/gorm"
)

// VendorRepository 供应商仓储接口
type VendorRepository interface {
	Save(ctx context.Context, vendor *model.VendorModel) error
	FindByID(ctx context.Context, id string) (*model.VendorModel, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.VendorModel, error)
}

// vendorRepository 供应商仓储实现
type vendorRepository struct {
	db *gorm.DB
}

// NewVendorRepository 创建供应商仓储
func NewVendorRepository(db *gorm.DB) VendorRepository {
	return &vendorRepository{db: db}
}

// Save 保存供应商
func (r *vendorRepository) Save(ctx context.Context, vendor *model.VendorModel) error {
	return r.db.WithContext(ctx).Save(vendor).Error
}

// FindByID 根据 ID 查找供应商
func (r *vendorRepository) FindByID(ctx context.Context, id string) (*model.VendorModel, error) {
	var vendor model.VendorModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// FindByIDs 批量查找供应商
func (r *vendorRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.VendorModel, error) {
	var vendors []*model.VendorModel
	if len(ids) == 0 {
		return vendors, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&vendors).Error
	return vendors, err
}
