package service

import (
	"context"

	"github.com/mautops/procurement-gin/internal/metrics"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/shopspring/decimal"
)

// spentStatuses 计入项目已用预算的状态
var spentStatuses = []string{model.StatusApproved, model.StatusPending}

// BudgetStatus 项目预算使用情况, 仅用于展示
type BudgetStatus struct {
	ProjectID  string          `json:"project_id"`
	Budget     decimal.Decimal `json:"budget"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage *int            `json:"percentage"` // 预算为 0 时为空
}

// BudgetService 预算服务接口
type BudgetService interface {
	ProjectSpent(ctx context.Context, projectID string) (decimal.Decimal, error)
	GetProjectBudgetStatus(ctx context.Context, projectID string) (*BudgetStatus, error)
}

// budgetService 预算服务实现
type budgetService struct {
	projectRepo repository.ProjectRepository
	prRepo      repository.PurchaseRequestRepository
}

// NewBudgetService 创建预算服务
func NewBudgetService(projectRepo repository.ProjectRepository, prRepo repository.PurchaseRequestRepository) BudgetService {
	return &budgetService{projectRepo: projectRepo, prRepo: prRepo}
}

// ProjectSpent 项目已用金额: approved 和 pending 申请的总额
func (s *budgetService) ProjectSpent(ctx context.Context, projectID string) (decimal.Decimal, error) {
	spent, err := s.prRepo.SumAmountByProject(ctx, projectID, spentStatuses)
	if err != nil {
		return decimal.Zero, wrapStoreError("project", projectID, err)
	}
	return spent, nil
}

// GetProjectBudgetStatus 获取项目预算使用情况
func (s *budgetService) GetProjectBudgetStatus(ctx context.Context, projectID string) (*BudgetStatus, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, wrapStoreError("project", projectID, err)
	}
	spent, err := s.ProjectSpent(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &BudgetStatus{
		ProjectID:  project.ID,
		Budget:     project.Budget,
		Spent:      spent,
		Remaining:  project.Budget.Sub(spent),
		Percentage: BudgetPercentage(spent, project.Budget),
	}, nil
}

// BudgetPercentage min(100, round(spent/budget*100)), 预算不大于 0 时返回 nil
func BudgetPercentage(spent, budget decimal.Decimal) *int {
	if !budget.IsPositive() {
		return nil
	}
	p := int(spent.Div(budget).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	if p > 100 {
		p = 100
	}
	return &p
}

// BudgetMetricsSource 定期刷新项目预算使用率指标
type BudgetMetricsSource struct {
	Projects repository.ProjectRepository
	Budget   BudgetService
}

// Name 指标来源名称
func (b *BudgetMetricsSource) Name() string {
	return "project_budget"
}

// Collect 刷新全部项目的预算使用率
func (b *BudgetMetricsSource) Collect(ctx context.Context) error {
	projects, err := b.Projects.FindAll(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		spent, err := b.Budget.ProjectSpent(ctx, p.ID)
		if err != nil {
			return err
		}
		if pct := BudgetPercentage(spent, p.Budget); pct != nil {
			metrics.SetBudgetUsed(p.ID, float64(*pct))
		}
	}
	return nil
}
