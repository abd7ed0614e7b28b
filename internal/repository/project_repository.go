package repository

import (
	"context"

	"github.com/mautops/procurement-gin/internal/model"
	"gorm.io/gorm"
)

// ProjectRepository 项目仓储接口
type ProjectRepository interface {
	Save(ctx context.Context, project *model.ProjectModel) error
	FindByID(ctx context.Context, id string) (*model.ProjectModel, error)
	FindAll(ctx context.Context) ([]*model.ProjectModel, error)
}

// projectRepository 项目仓储实现
type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建项目仓储
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// Save 保存项目
func (r *projectRepository) Save(ctx context.Context, project *model.ProjectModel) error {
	return r.db.WithContext(ctx).Save(project).Error
}

// FindByID 根据 ID 查找项目
func (r *projectRepository) FindByID(ctx context.Context, id string) (*model.ProjectModel, error) {
	var project model.ProjectModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// FindAll 查找所有项目
func (r *projectRepository) FindAll(ctx context.Context) ([]*model.ProjectModel, error) {
	var projects []*model.ProjectModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&projects).Error
	return projects, err
}

// ProjectItemRepository 项目库存行仓储接口
type ProjectItemRepository interface {
	Save(ctx context.Context, item *model.ProjectItemModel) error
	FindByID(ctx context.Context, id string) (*model.ProjectItemModel, error)
	// FindByProjectAndName 在项目内按名称精确查找, 用于没有关联 ID 的旧数据
	FindByProjectAndName(ctx context.Context, projectID, name string) (*model.ProjectItemModel, error)
	FindByProject(ctx context.Context, projectID string) ([]*model.ProjectItemModel, error)
}

// projectItemRepository 项目库存行仓储实现
type projectItemRepository struct {
	db *gorm.DB
}

// NewProjectItemRepository 创建项目库存行仓储
func NewProjectItemRepository(db *gorm.DB) ProjectItemRepository {
	return &projectItemRepository{db: db}
}

// Save 保存库存行
func (r *projectItemRepository) Save(ctx context.Context, item *model.ProjectItemModel) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// FindByID 根据 ID 查找库存行
func (r *projectItemRepository) FindByID(ctx context.Context, id string) (*model.ProjectItemModel, error) {
	var item model.ProjectItemModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByProjectAndName 按项目和名称查找库存行
func (r *projectItemRepository) FindByProjectAndName(ctx context.Context, projectID, name string) (*model.ProjectItemModel, error) {
	var item model.ProjectItemModel
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND name = ?", projectID, name).
		Order("created_at ASC").
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByProject 查找项目的全部库存行
func (r *projectItemRepository) FindByProject(ctx context.Context, projectID string) ([]*model.ProjectItemModel, error) {
	var items []*model.ProjectItemModel
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("name ASC").Find(&items).Error
	return items, err
}

// StockMovementRepository 库存变动仓储接口
type StockMovementRepository interface {
	Create(ctx context.Context, m *model.StockMovementModel) error
	FindByProjectItem(ctx context.Context, projectItemID string) ([]*model.StockMovementModel, error)
	FindByRequest(ctx context.Context, requestID string) ([]*model.StockMovementModel, error)
}

// stockMovementRepository 库存变动仓储实现
type stockMovementRepository struct {
	db *gorm.DB
}

// NewStockMovementRepository 创建库存变动仓储
func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepository{db: db}
}

// Create 写入库存变动
func (r *stockMovementRepository) Create(ctx context.Context, m *model.StockMovementModel) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// FindByProjectItem 查找库存行的变动记录
func (r *stockMovementRepository) FindByProjectItem(ctx context.Context, projectItemID string) ([]*model.StockMovementModel, error) {
	var list []*model.StockMovementModel
	err := r.db.WithContext(ctx).Where("project_item_id = ?", projectItemID).Order("created_at ASC").Find(&list).Error
	return list, err
}

// FindByRequest 查找采购申请引起的变动记录
func (r *stockMovementRepository) FindByRequest(ctx context.Context, requestID string) ([]*model.StockMovementModel, error) {
	var list []*model.StockMovementModel
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("created_at ASC").Find(&list).Error
	return list, err
}
