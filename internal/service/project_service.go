package service

import (
	"context"

	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
)

// ProjectStockLine 库存行及领用数量
type ProjectStockLine struct {
	*model.ProjectItemModel
	Withdrawn string `json:"withdrawn"`
}

// ProjectService 项目查询服务接口
type ProjectService interface {
	List(ctx context.Context) ([]*model.ProjectModel, error)
	Get(ctx context.Context, id string) (*model.ProjectModel, error)
	Stock(ctx context.Context, projectID string) ([]ProjectStockLine, error)
	Movements(ctx context.Context, projectItemID string) ([]*model.StockMovementModel, error)
}

// projectService 项目服务实现
type projectService struct {
	projectRepo  repository.ProjectRepository
	itemRepo     repository.ProjectItemRepository
	movementRepo repository.StockMovementRepository
}

// NewProjectService 创建项目服务
func NewProjectService(projectRepo repository.ProjectRepository, itemRepo repository.ProjectItemRepository, movementRepo repository.StockMovementRepository) ProjectService {
	return &projectService{projectRepo: projectRepo, itemRepo: itemRepo, movementRepo: movementRepo}
}

// List 全部项目
func (s *projectService) List(ctx context.Context) ([]*model.ProjectModel, error) {
	list, err := s.projectRepo.FindAll(ctx)
	if err != nil {
		return nil, wrapStoreError("projects", "", err)
	}
	return list, nil
}

// Get 获取项目
func (s *projectService) Get(ctx context.Context, id string) (*model.ProjectModel, error) {
	p, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreError("project", id, err)
	}
	return p, nil
}

// Stock 项目库存
func (s *projectService) Stock(ctx context.Context, projectID string) ([]ProjectStockLine, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	items, err := s.itemRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, wrapStoreError("project items", projectID, err)
	}
	lines := make([]ProjectStockLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, ProjectStockLine{ProjectItemModel: it, Withdrawn: it.Withdrawn().String()})
	}
	return lines, nil
}

// Movements 库存行的变动记录
func (s *projectService) Movements(ctx context.Context, projectItemID string) ([]*model.StockMovementModel, error) {
	list, err := s.movementRepo.FindByProjectItem(ctx, projectItemID)
	if err != nil {
		return nil, wrapStoreError("stock movements", projectItemID, err)
	}
	return list, nil
}
