package repository

import (
	"context"
	"errors"

	"github.com/mautops/procurement-gin/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrVersionConflict 记录已被其他请求修改
var ErrVersionConflict = errors.New("record was modified concurrently")

// PurchaseRequestRepository 采购申请仓储接口
type PurchaseRequestRepository interface {
	Create(ctx context.Context, pr *model.PurchaseRequestModel) error
	FindByID(ctx context.Context, id string) (*model.PurchaseRequestModel, error)
	// UpdateWithVersion 仅当数据库中的版本号等于 prevVersion 时写入, 否则返回 ErrVersionConflict
	UpdateWithVersion(ctx context.Context, pr *model.PurchaseRequestModel, prevVersion int) error
	Delete(ctx context.Context, id string) error
	FindByFilter(ctx context.Context, filter *PurchaseRequestFilter) ([]*model.PurchaseRequestModel, int64, error)
	FindNumbersWithPrefix(ctx context.Context, prefix string) ([]string, error)
	SumAmountByProject(ctx context.Context, projectID string, statuses []string) (decimal.Decimal, error)
	CountByFilter(ctx context.Context, filter *PurchaseRequestFilter) (int64, error)
}

// PurchaseRequestFilter 采购申请查询过滤器
type PurchaseRequestFilter struct {
	Status        *string
	Type          *string
	ApprovalLevel *int
	ProjectID     *string
	RequesterID   *string
	Keyword       *string // 匹配申请编号
	StartTime     *string
	EndTime       *string

	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// purchaseRequestRepository 采购申请仓储实现
type purchaseRequestRepository struct {
	db *gorm.DB
}

// NewPurchaseRequestRepository 创建采购申请仓储
func NewPurchaseRequestRepository(db *gorm.DB) PurchaseRequestRepository {
	return &purchaseRequestRepository{db: db}
}

// Create 创建采购申请
func (r *purchaseRequestRepository) Create(ctx context.Context, pr *model.PurchaseRequestModel) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

// FindByID 根据 ID 查找采购申请
func (r *purchaseRequestRepository) FindByID(ctx context.Context, id string) (*model.PurchaseRequestModel, error) {
	var pr model.PurchaseRequestModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&pr).Error; err != nil {
		return nil, err
	}
	return &pr, nil
}

// UpdateWithVersion 条件更新, 成功后 pr.Version 加一
func (r *purchaseRequestRepository) UpdateWithVersion(ctx context.Context, pr *model.PurchaseRequestModel, prevVersion int) error {
	pr.Version = prevVersion + 1
	result := r.db.WithContext(ctx).
		Model(&model.PurchaseRequestModel{}).
		Where("id = ? AND version = ?", pr.ID, prevVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(pr)
	if result.Error != nil {
		pr.Version = prevVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		pr.Version = prevVersion
		return ErrVersionConflict
	}
	return nil
}

// Delete 删除采购申请及其行项, 历史记录保留
func (r *purchaseRequestRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", id).Delete(&model.PRItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.PurchaseRequestModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FindByFilter 分页查询采购申请, 返回当前页和总数
func (r *purchaseRequestRepository) FindByFilter(ctx context.Context, filter *PurchaseRequestFilter) ([]*model.PurchaseRequestModel, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&model.PurchaseRequestModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	page, pageSize := 1, 20
	if filter != nil {
		if filter.SortBy != "" {
			dir := "DESC"
			if filter.SortOrder == "asc" {
				dir = "ASC"
			}
			order = filter.SortBy + " " + dir
		}
		if filter.Page > 0 {
			page = filter.Page
		}
		if filter.PageSize > 0 {
			pageSize = filter.PageSize
		}
	}

	var list []*model.PurchaseRequestModel
	err := query.Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error
	return list, total, err
}

// CountByFilter 统计满足条件的采购申请数量
func (r *purchaseRequestRepository) CountByFilter(ctx context.Context, filter *PurchaseRequestFilter) (int64, error) {
	var total int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&model.PurchaseRequestModel{}), filter).Count(&total).Error
	return total, err
}

func (r *purchaseRequestRepository) applyFilter(query *gorm.DB, filter *PurchaseRequestFilter) *gorm.DB {
	if filter == nil {
		return query
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		if *filter.Type == model.RequestTypeProject {
			query = query.Where("(type = ? OR type = '' OR type IS NULL)", model.RequestTypeProject)
		} else {
			query = query.Where("type = ?", *filter.Type)
		}
	}
	if filter.ApprovalLevel != nil {
		query = query.Where("approval_level = ?", *filter.ApprovalLevel)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.RequesterID != nil {
		query = query.Where("requester_id = ?", *filter.RequesterID)
	}
	if filter.Keyword != nil && *filter.Keyword != "" {
		query = query.Where("request_number LIKE ?", "%"+*filter.Keyword+"%")
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", *filter.EndTime)
	}
	return query
}

// FindNumbersWithPrefix 查找以 prefix 开头的申请编号
func (r *purchaseRequestRepository) FindNumbersWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&model.PurchaseRequestModel{}).
		Where("request_number LIKE ?", prefix+"%").
		Pluck("request_number", &numbers).Error
	return numbers, err
}

// SumAmountByProject 汇总项目下指定状态的申请金额
func (r *purchaseRequestRepository) SumAmountByProject(ctx context.Context, projectID string, statuses []string) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&model.PurchaseRequestModel{}).
		Where("project_id = ? AND status IN ?", projectID, statuses).
		Pluck("total_amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}
