package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/metrics"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// PurchaseOrderService 采购订单服务接口
type PurchaseOrderService interface {
	Create(ctx context.Context, actor Actor, requestID, vendorID string) (*model.PurchaseOrderModel, error)
	ListByRequest(ctx context.Context, requestID string) ([]*model.PurchaseOrderModel, error)
	Get(ctx context.Context, id string) (*model.PurchaseOrderModel, error)
}

// purchaseOrderService 采购订单服务实现
type purchaseOrderService struct {
	prRepo      repository.PurchaseRequestRepository
	poRepo      repository.PurchaseOrderRepository
	vendorRepo  repository.VendorRepository
	auditLogSvc AuditLogService
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewPurchaseOrderService 创建采购订单服务
func NewPurchaseOrderService(
	prRepo repository.PurchaseRequestRepository,
	poRepo repository.PurchaseOrderRepository,
	vendorRepo repository.VendorRepository,
	auditLogSvc AuditLogService,
	log logrus.FieldLogger,
) PurchaseOrderService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &purchaseOrderService{
		prRepo:      prRepo,
		poRepo:      poRepo,
		vendorRepo:  vendorRepo,
		auditLogSvc: auditLogSvc,
		log:         log,
		now:         time.Now,
	}
}

// Create 为已批准的采购申请生成订单, 供应商必须是申请中的供应商
func (s *purchaseOrderService) Create(ctx context.Context, actor Actor, requestID, vendorID string) (*model.PurchaseOrderModel, error) {
	if actor.Role != model.RolePurchasing && !actor.IsSuperadmin() {
		return nil, AuthorizationError(CodeNotAuthorized, "only purchasing staff can issue purchase orders")
	}
	pr, err := s.prRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapStoreError("purchase request", requestID, err)
	}
	if pr.Status != model.StatusApproved {
		return nil, ConflictError(CodeInvalidTransition, "purchase request %s is %s, only approved requests can be ordered", pr.RequestNumber, pr.Status)
	}

	onRequest := false
	for _, v := range pr.VendorIDs {
		if v == vendorID {
			onRequest = true
			break
		}
	}
	if !onRequest {
		return nil, ValidationError(CodeVendorNotOnPR, "vendor %s is not listed on purchase request %s", vendorID, pr.RequestNumber)
	}
	vendor, err := s.vendorRepo.FindByID(ctx, vendorID)
	if err != nil {
		return nil, wrapStoreError("vendor", vendorID, err)
	}

	now := s.now()
	number, numErr := nextNumber(ctx, "PO", now, s.poRepo.FindNumbersWithPrefix)
	if numErr != nil {
		s.log.WithError(numErr).WithField("po_number", number).Warn("order number scan failed, using timestamp suffix")
	}

	po := &model.PurchaseOrderModel{
		ID:          uuid.New().String(),
		PONumber:    number,
		RequestID:   pr.ID,
		VendorID:    vendor.ID,
		VendorName:  vendor.Name,
		TotalAmount: pr.TotalAmount,
		Status:      model.POStatusIssued,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := po.Validate(); err != nil {
		return nil, ValidationError(CodeInvalidInput, "%s", err.Error())
	}
	if err := s.poRepo.Create(ctx, po); err != nil {
		return nil, wrapStoreError("purchase order", po.ID, err)
	}

	metrics.RecordTransition("create-po")
	if s.auditLogSvc != nil {
		if err := s.auditLogSvc.RecordAction(ctx, actor.ID, "create", model.ResourcePurchaseOrder, po.ID, map[string]string{
			"po_number":  po.PONumber,
			"request_id": pr.ID,
			"vendor_id":  vendor.ID,
		}); err != nil {
			s.log.WithError(err).WithField("purchase_order_id", po.ID).Warn("failed to record audit log")
		}
	}
	return po, nil
}

// ListByRequest 查询申请的采购订单
func (s *purchaseOrderService) ListByRequest(ctx context.Context, requestID string) ([]*model.PurchaseOrderModel, error) {
	list, err := s.poRepo.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, wrapStoreError("purchase orders", requestID, err)
	}
	return list, nil
}

// Get 获取采购订单
func (s *purchaseOrderService) Get(ctx context.Context, id string) (*model.PurchaseOrderModel, error) {
	po, err := s.poRepo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreError("purchase order", id, err)
	}
	return po, nil
}
