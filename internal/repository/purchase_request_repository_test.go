package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRequest(id, number, status string) *model.PurchaseRequestModel {
	now := time.Now()
	return &model.PurchaseRequestModel{
		ID:            id,
		RequestNumber: number,
		Type:          model.RequestTypeSub,
		Status:        status,
		RequesterID:   "user-001",
		RequesterName: "Somchai",
		TotalAmount:   decimal.NewFromInt(1000),
		Attachments:   []string{"quote.pdf"},
		VendorIDs:     []string{"vendor-001"},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TestPurchaseRequestRepository_CreateAndFind 测试创建并查找采购申请
func TestPurchaseRequestRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewPurchaseRequestRepository(db)
	ctx := context.Background()

	pr := newRequest("pr-001", "PR-2024-01-01-1", model.StatusPending)
	require.NoError(t, repo.Create(ctx, pr))

	found, err := repo.FindByID(ctx, "pr-001")
	require.NoError(t, err)
	assert.Equal(t, "PR-2024-01-01-1", found.RequestNumber)
	assert.Equal(t, []string{"quote.pdf"}, []string(found.Attachments))
	assert.True(t, decimal.NewFromInt(1000).Equal(found.TotalAmount))

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestPurchaseRequestRepository_UpdateWithVersion 测试乐观锁更新
func TestPurchaseRequestRepository_UpdateWithVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewPurchaseRequestRepository(db)
	ctx := context.Background()

	pr := newRequest("pr-001", "PR-2024-01-01-1", model.StatusPending)
	require.NoError(t, repo.Create(ctx, pr))

	first, err := repo.FindByID(ctx, "pr-001")
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, "pr-001")
	require.NoError(t, err)

	first.ApprovalLevel = model.LevelManager
	require.NoError(t, repo.UpdateWithVersion(ctx, first, first.Version))
	assert.Equal(t, 2, first.Version)

	// 第二个副本仍持有旧版本号
	second.Status = model.StatusRejected
	err = repo.UpdateWithVersion(ctx, second, second.Version)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.Equal(t, 1, second.Version)

	stored, err := repo.FindByID(ctx, "pr-001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, model.LevelManager, stored.ApprovalLevel)
}

// TestPurchaseRequestRepository_UpdateClearsSlots 测试零值字段也会被写入
func TestPurchaseRequestRepository_UpdateClearsSlots(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewPurchaseRequestRepository(db)
	ctx := context.Background()

	now := time.Now()
	pr := newRequest("pr-001", "PR-2024-01-01-1", model.StatusPending)
	pr.HeadOfDept = model.ApprovalSlot{ApproverID: "head-001", ApproverName: "Head", ApprovedAt: &now, Signature: "sig.png"}
	require.NoError(t, repo.Create(ctx, pr))

	pr.ClearApprovals()
	require.NoError(t, repo.UpdateWithVersion(ctx, pr, pr.Version))

	stored, err := repo.FindByID(ctx, "pr-001")
	require.NoError(t, err)
	assert.True(t, stored.HeadOfDept.IsEmpty())
}

// TestPurchaseRequestRepository_FindByFilter 测试过滤和分页
func TestPurchaseRequestRepository_FindByFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewPurchaseRequestRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRequest("pr-001", "PR-2024-01-01-1", model.StatusPending)))
	require.NoError(t, repo.Create(ctx, newRequest("pr-002", "PR-2024-01-01-2", model.StatusDraft)))
	legacy := newRequest("pr-003", "PR-2024-01-02-1", model.StatusPending)
	legacy.Type = ""
	require.NoError(t, repo.Create(ctx, legacy))

	status := model.StatusPending
	list, total, err := repo.FindByFilter(ctx, &repository.PurchaseRequestFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	projectType := model.RequestTypeProject
	list, total, err = repo.FindByFilter(ctx, &repository.PurchaseRequestFilter{Type: &projectType})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "pr-003", list[0].ID)

	list, total, err = repo.FindByFilter(ctx, &repository.PurchaseRequestFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 1)
}

// TestPurchaseRequestRepository_FindNumbersWithPrefix 测试按前缀查找编号
func TestPurchaseRequestRepository_FindNumbersWithPrefix(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewPurchaseRequestRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRequest("pr-001", "PR-2024-01-01-1", model.StatusPending)))
	require.NoError(t, repo.Create(ctx, newRequest("pr-002", "PR-2024-01-01-7", model.StatusPending)))
	require.NoError(t, repo.Create(ctx, newRequest("pr-003", "PR-2024-01-02-1", model.StatusPending)))

	numbers, err := repo.FindNumbersWithPrefix(ctx, "PR-2024-01-01-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"PR-2024-01-01-1", "PR-2024-01-01-7"}, numbers)
}

// TestPurchaseRequestRepository_SumAmountByProject 测试项目金额汇总
func TestPurchaseRequestRepository_SumAmountByProject(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewPurchaseRequestRepository(db)
	ctx := context.Background()

	projectID := "proj-001"
	for i, status := range []string{model.StatusPending, model.StatusApproved, model.StatusDraft, model.StatusRejected} {
		pr := newRequest(fmt.Sprintf("pr-%03d", i+1), fmt.Sprintf("PR-2024-01-01-%d", i+1), status)
		pr.ProjectID = &projectID
		pr.TotalAmount = decimal.NewFromFloat(250.25)
		require.NoError(t, repo.Create(ctx, pr))
	}

	sum, err := repo.SumAmountByProject(ctx, projectID, []string{model.StatusApproved, model.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, "500.5", sum.String())

	empty, err := repo.SumAmountByProject(ctx, "proj-none", []string{model.StatusApproved})
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

// TestPurchaseRequestRepository_Delete 测试删除申请保留历史
func TestPurchaseRequestRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewPurchaseRequestRepository(db)
	historyRepo := repository.NewPRHistoryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRequest("pr-001", "PR-2024-01-01-1", model.StatusRejected)))
	require.NoError(t, historyRepo.Append(ctx, &model.PRHistoryModel{
		ID:        "h-1",
		RequestID: "pr-001",
		Action:    model.HistoryActionCreate,
		ActorID:   "user-001",
		CreatedAt: time.Now(),
	}))

	require.NoError(t, repo.Delete(ctx, "pr-001"))
	_, err := repo.FindByID(ctx, "pr-001")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	entries, err := historyRepo.FindByRequestID(ctx, "pr-001")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.ErrorIs(t, repo.Delete(ctx, "pr-001"), gorm.ErrRecordNotFound)
}
