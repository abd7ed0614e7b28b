package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 库存变动原因
const (
	StockReasonDeduct = "pr-approve-deduct"
	StockReasonIntake = "pr-approve-intake"
)

// Shortfall 扣减数量超过库存时的记录
type Shortfall struct {
	Name      string          `json:"name"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

// StockReport 一次审批对库存的影响
type StockReport struct {
	Updated    int         `json:"updated"`
	Created    int         `json:"created,omitempty"`
	Reserved   int         `json:"reserved"`
	Unresolved []string    `json:"unresolved"`
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
}

// Summary 写入历史记录的摘要
func (r *StockReport) Summary() string {
	s := fmt.Sprintf("stock updated %d, reserved %d, unresolved %d", r.Updated, r.Reserved, len(r.Unresolved))
	if r.Created > 0 {
		s += fmt.Sprintf(", created %d", r.Created)
	}
	if len(r.Shortfalls) > 0 {
		s += fmt.Sprintf(", shortfall %d", len(r.Shortfalls))
	}
	if len(r.Unresolved) > 0 {
		s += fmt.Sprintf(" (%v)", r.Unresolved)
	}
	return s
}

// DeductOutcome 单个行项的扣减结果
type DeductOutcome struct {
	Resolved  bool
	Shortfall *Shortfall
}

// StockLedger 项目库存账本, 所有写入都在调用方的事务中进行
type StockLedger struct {
	items     repository.ProjectItemRepository
	movements repository.StockMovementRepository
	prItems   repository.PRItemRepository
	now       func() time.Time
}

// NewStockLedger 在给定连接或事务上创建库存账本
func NewStockLedger(db *gorm.DB) *StockLedger {
	return &StockLedger{
		items:     repository.NewProjectItemRepository(db),
		movements: repository.NewStockMovementRepository(db),
		prItems:   repository.NewPRItemRepository(db),
		now:       time.Now,
	}
}

// resolve 先按关联 ID 查找, 没有关联时按项目内同名查找
func (l *StockLedger) resolve(ctx context.Context, projectID string, ref *string, name string) (*model.ProjectItemModel, error) {
	var (
		item *model.ProjectItemModel
		err  error
	)
	if ref != nil && *ref != "" {
		item, err = l.items.FindByID(ctx, *ref)
	} else {
		if projectID == "" {
			return nil, nil
		}
		item, err = l.items.FindByProjectAndName(ctx, projectID, name)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return item, err
}

// Deduct 扣减单个库存行, 库存不足时扣到 0 并返回不足记录
// 只有存储错误会返回 error
func (l *StockLedger) Deduct(ctx context.Context, projectID, requestID string, ref *string, name string, qty decimal.Decimal) (DeductOutcome, error) {
	item, err := l.resolve(ctx, projectID, ref, name)
	if err != nil {
		return DeductOutcome{}, fmt.Errorf("failed to resolve stock line %q: %w", name, err)
	}
	if item == nil {
		return DeductOutcome{}, nil
	}

	out := DeductOutcome{Resolved: true}
	old := item.Quantity
	next := old.Sub(qty)
	if next.IsNegative() {
		out.Shortfall = &Shortfall{Name: name, Requested: qty, Available: old}
		next = decimal.Zero
	}
	item.Quantity = next
	item.UpdatedAt = l.now()
	if err := l.items.Save(ctx, item); err != nil {
		return DeductOutcome{}, fmt.Errorf("failed to update stock line %s: %w", item.ID, err)
	}

	shortfall := decimal.Zero
	if out.Shortfall != nil {
		shortfall = qty.Sub(old)
	}
	if err := l.record(ctx, item.ID, requestID, old, next, shortfall, StockReasonDeduct); err != nil {
		return DeductOutcome{}, err
	}
	return out, nil
}

// DeductItems 扣减申请的全部普通行项, 预留行项跳过
func (l *StockLedger) DeductItems(ctx context.Context, projectID, requestID string, items []*model.PRItemModel) (*StockReport, error) {
	report := &StockReport{Unresolved: []string{}}
	for _, it := range items {
		if it.IsReserve() {
			report.Reserved++
			continue
		}
		out, err := l.Deduct(ctx, projectID, requestID, it.ProjectItemID, it.Name, it.Quantity)
		if err != nil {
			return nil, err
		}
		if !out.Resolved {
			report.Unresolved = append(report.Unresolved, it.Name)
			continue
		}
		report.Updated++
		if out.Shortfall != nil {
			report.Shortfalls = append(report.Shortfalls, *out.Shortfall)
		}
	}
	return report, nil
}

// IntakeItems 项目申请审批后入库: 增加关联或同名库存行, 没有则新建并回写关联
func (l *StockLedger) IntakeItems(ctx context.Context, projectID, requestID string, items []*model.PRItemModel) (*StockReport, error) {
	report := &StockReport{Unresolved: []string{}}
	for _, it := range items {
		if it.IsReserve() {
			report.Reserved++
			continue
		}

		item, err := l.resolve(ctx, projectID, it.ProjectItemID, it.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve stock line %q: %w", it.Name, err)
		}

		now := l.now()
		if item == nil {
			if it.ProjectItemID != nil && *it.ProjectItemID != "" {
				// 关联的库存行已不存在
				report.Unresolved = append(report.Unresolved, it.Name)
				continue
			}
			item = &model.ProjectItemModel{
				ID:              uuid.New().String(),
				ProjectID:       projectID,
				Name:            it.Name,
				Unit:            it.Unit,
				UnitPrice:       it.UnitPrice,
				Quantity:        it.Quantity,
				InitialQuantity: decimal.NewNullDecimal(it.Quantity),
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := l.items.Save(ctx, item); err != nil {
				return nil, fmt.Errorf("failed to create stock line %q: %w", it.Name, err)
			}
			if err := l.record(ctx, item.ID, requestID, decimal.Zero, it.Quantity, decimal.Zero, StockReasonIntake); err != nil {
				return nil, err
			}
			report.Created++
		} else {
			old := item.Quantity
			item.Quantity = old.Add(it.Quantity)
			if item.InitialQuantity.Valid {
				item.InitialQuantity.Decimal = item.InitialQuantity.Decimal.Add(it.Quantity)
			}
			item.UpdatedAt = now
			if err := l.items.Save(ctx, item); err != nil {
				return nil, fmt.Errorf("failed to update stock line %s: %w", item.ID, err)
			}
			if err := l.record(ctx, item.ID, requestID, old, item.Quantity, decimal.Zero, StockReasonIntake); err != nil {
				return nil, err
			}
			report.Updated++
		}

		if it.ProjectItemID == nil || *it.ProjectItemID != item.ID {
			id := item.ID
			it.ProjectItemID = &id
			it.UpdatedAt = now
			if err := l.prItems.Save(ctx, it); err != nil {
				return nil, fmt.Errorf("failed to link line item %s: %w", it.ID, err)
			}
		}
	}
	return report, nil
}

// record 写入库存变动
func (l *StockLedger) record(ctx context.Context, projectItemID, requestID string, old, next, shortfall decimal.Decimal, reason string) error {
	m := &model.StockMovementModel{
		ID:            uuid.New().String(),
		ProjectItemID: projectItemID,
		RequestID:     requestID,
		OldQuantity:   old,
		NewQuantity:   next,
		Delta:         next.Sub(old),
		Shortfall:     shortfall,
		Reason:        reason,
		CreatedAt:     l.now(),
	}
	if err := l.movements.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}
	return nil
}
