package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/metrics"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/policy"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/storage"
	"github.com/mautops/procurement-gin/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 存储集合名称
const (
	CollectionPurchaseRequests = "purchase_requests"
	CollectionUsers            = "users"
)

// 软失败步骤
const (
	StepSignatureCopy     = "signature_copy"
	StepSignatureCleanup  = "signature_cleanup"
	StepAttachmentCleanup = "attachment_cleanup"
	StepAuditLog          = "audit_log"
	StepRelationWrite     = "relation_write"
)

// PurchaseRequestService 采购申请生命周期服务接口
type PurchaseRequestService interface {
	Create(ctx context.Context, actor Actor, req *CreateRequest) (*TransitionResult, error)
	Get(ctx context.Context, id string) (*RequestDetail, error)
	List(ctx context.Context, filter *repository.PurchaseRequestFilter) (*ListResult, error)
	UpdateDraft(ctx context.Context, actor Actor, id string, req *UpdateRequest) (*TransitionResult, error)
	Submit(ctx context.Context, actor Actor, id string) (*TransitionResult, error)
	// Approve 根据当前层级分派到部门主管审批或最终审批
	Approve(ctx context.Context, actor Actor, id string, comment string) (*TransitionResult, error)
	Reject(ctx context.Context, actor Actor, id string, reason string) (*TransitionResult, error)
	Resubmit(ctx context.Context, actor Actor, id string, req *UpdateRequest) (*TransitionResult, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

// ItemInput 行项输入, 总价由数量和单价计算
type ItemInput struct {
	Name          string          `json:"name" example:"Cable"`
	Unit          string          `json:"unit" example:"m"`
	Quantity      decimal.Decimal `json:"quantity" swaggertype:"number" example:"10"`
	UnitPrice     decimal.Decimal `json:"unit_price" swaggertype:"number" example:"25.5"`
	ProjectItemID *string         `json:"project_item_id,omitempty"`
	ItemType      string          `json:"item_type" example:"regular"` // regular 或 reserve
}

// Upload 上传的附件
type Upload struct {
	Filename string
	Content  io.Reader
}

// CreateRequest 创建采购申请请求
type CreateRequest struct {
	Type        string      `json:"type" example:"sub"`
	ProjectID   *string     `json:"project_id,omitempty"`
	VendorIDs   []string    `json:"vendor_ids"`
	Items       []ItemInput `json:"items"`
	Notes       string      `json:"notes"`
	Submit      bool        `json:"submit"` // true 时直接进入待审批
	Attachments []Upload    `json:"-"`
}

// UpdateRequest 编辑草稿或驳回后重新提交的请求
// 为 nil 的字段保持不变
type UpdateRequest struct {
	ProjectID       *string     `json:"project_id,omitempty"`
	VendorIDs       []string    `json:"vendor_ids,omitempty"`
	Items           []ItemInput `json:"items,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
	KeepAttachments []string    `json:"keep_attachments,omitempty"` // 保留的现有附件
	NewAttachments  []Upload    `json:"-"`
}

// RequestDetail 采购申请详情
type RequestDetail struct {
	*model.PurchaseRequestModel
	Items []*model.PRItemModel `json:"items"`
	Label policy.Label         `json:"label"`
}

// TransitionResult 生命周期操作结果, Warnings 为未中断操作的软失败
type TransitionResult struct {
	Request  *RequestDetail `json:"request"`
	Stock    *StockReport   `json:"stock,omitempty"`
	Warnings []string       `json:"warnings"`
}

// RequestSummary 列表项
type RequestSummary struct {
	*model.PurchaseRequestModel
	Label policy.Label `json:"label"`
}

// ListResult 列表结果
type ListResult struct {
	Items    []RequestSummary `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// purchaseRequestService 采购申请服务实现
type purchaseRequestService struct {
	db          *gorm.DB
	prRepo      repository.PurchaseRequestRepository
	itemRepo    repository.PRItemRepository
	userRepo    repository.UserRepository
	vendorRepo  repository.VendorRepository
	projectRepo repository.ProjectRepository
	store       storage.BlobStore
	auditLogSvc AuditLogService
	publisher   EventPublisher
	authz       Authorizer
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewPurchaseRequestService 创建采购申请服务, publisher 和 authz 可以为 nil
func NewPurchaseRequestService(
	db *gorm.DB,
	store storage.BlobStore,
	auditLogSvc AuditLogService,
	publisher EventPublisher,
	authz Authorizer,
	log logrus.FieldLogger,
) PurchaseRequestService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &purchaseRequestService{
		db:          db,
		prRepo:      repository.NewPurchaseRequestRepository(db),
		itemRepo:    repository.NewPRItemRepository(db),
		userRepo:    repository.NewUserRepository(db),
		vendorRepo:  repository.NewVendorRepository(db),
		projectRepo: repository.NewProjectRepository(db),
		store:       store,
		auditLogSvc: auditLogSvc,
		publisher:   publisher,
		authz:       authz,
		log:         log,
		now:         time.Now,
	}
}

// txRepos 事务内使用的仓储
type txRepos struct {
	pr      repository.PurchaseRequestRepository
	items   repository.PRItemRepository
	history repository.PRHistoryRepository
}

func reposFor(tx *gorm.DB) txRepos {
	return txRepos{
		pr:      repository.NewPurchaseRequestRepository(tx),
		items:   repository.NewPRItemRepository(tx),
		history: repository.NewPRHistoryRepository(tx),
	}
}

// Create 创建采购申请, 可以保存为草稿或直接提交
func (s *purchaseRequestService) Create(ctx context.Context, actor Actor, req *CreateRequest) (*TransitionResult, error) {
	if req == nil {
		return nil, ValidationError(CodeInvalidInput, "request body is required")
	}
	reqType := req.Type
	if reqType == "" {
		reqType = model.RequestTypeProject
	}
	if reqType != model.RequestTypeProject && reqType != model.RequestTypeSub && reqType != model.RequestTypeOther {
		return nil, ValidationError(CodeInvalidInput, "invalid request type %q", req.Type)
	}

	now := s.now()
	id := uuid.New().String()
	items, err := buildItems(id, req.Items, now)
	if err != nil {
		return nil, err
	}

	pr := &model.PurchaseRequestModel{
		ID:            id,
		Type:          reqType,
		ProjectID:     normalizeID(req.ProjectID),
		VendorIDs:     dedupe(req.VendorIDs),
		RequesterID:   actor.ID,
		RequesterName: actor.Name,
		Notes:         req.Notes,
		Attachments:   []string{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	workflow.Apply(pr, workflow.StateDraft)
	pr.TotalAmount, pr.ReserveAmount = totals(items)

	if err := s.validateReferences(ctx, pr); err != nil {
		return nil, err
	}
	if req.Submit {
		if err := validateForSubmit(pr, items); err != nil {
			return nil, err
		}
		workflow.Apply(pr, workflow.StatePending0)
		pr.SubmittedAt = &now
	}

	number, numErr := nextNumber(ctx, "PR", now, s.prRepo.FindNumbersWithPrefix)
	if numErr != nil {
		s.log.WithError(numErr).WithField("request_number", number).Warn("request number scan failed, using timestamp suffix")
	}
	pr.RequestNumber = number

	stored, err := s.storeUploads(ctx, id, req.Attachments)
	if err != nil {
		return nil, err
	}
	pr.Attachments = stored

	if err := pr.Validate(); err != nil {
		s.cleanupFiles(ctx, id, stored)
		return nil, ValidationError(CodeInvalidInput, "%s", err.Error())
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := r.pr.Create(ctx, pr); err != nil {
			return err
		}
		if err := r.items.ReplaceForRequest(ctx, id, items); err != nil {
			return err
		}
		return appendHistory(ctx, r.history, id, model.HistoryActionCreate, actor,
			fmt.Sprintf("created as %s with %d items", pr.Status, len(items)), nil, now)
	})
	if err != nil {
		s.cleanupFiles(ctx, id, stored)
		return nil, wrapStoreError("purchase request", id, err)
	}

	metrics.RecordRequestCreated(reqType)
	result := &TransitionResult{Request: s.newDetail(pr, items), Warnings: []string{}}
	var softs []*SoftFailure
	if s.authz != nil {
		if err := s.authz.SetRelation(ctx, actor.ID, "operator", FGAObjectPurchaseRequest, id); err != nil {
			softs = append(softs, &SoftFailure{Step: StepRelationWrite, Err: err})
		}
	}
	s.afterTransition(ctx, actor, pr, model.HistoryActionCreate, result, softs)
	return result, nil
}

// Get 获取采购申请详情
func (s *purchaseRequestService) Get(ctx context.Context, id string) (*RequestDetail, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreError("purchase request", id, err)
	}
	items, err := s.itemRepo.FindByRequestID(ctx, id)
	if err != nil {
		return nil, wrapStoreError("purchase request items", id, err)
	}
	return s.newDetail(pr, items), nil
}

// List 分页查询采购申请
func (s *purchaseRequestService) List(ctx context.Context, filter *repository.PurchaseRequestFilter) (*ListResult, error) {
	if filter == nil {
		filter = &repository.PurchaseRequestFilter{}
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}

	list, total, err := s.prRepo.FindByFilter(ctx, filter)
	if err != nil {
		return nil, wrapStoreError("purchase requests", "", err)
	}
	items := make([]RequestSummary, 0, len(list))
	for _, pr := range list {
		items = append(items, RequestSummary{PurchaseRequestModel: pr, Label: policy.StatusLabel(pr)})
	}
	return &ListResult{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// UpdateDraft 编辑草稿, 被移除的附件文件会尽力删除
func (s *purchaseRequestService) UpdateDraft(ctx context.Context, actor Actor, id string, req *UpdateRequest) (*TransitionResult, error) {
	pr, err := s.loadForAction(ctx, id, workflow.ActionEdit)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, pr); err != nil {
		return nil, err
	}

	edit, err := s.applyEdit(ctx, pr, req)
	if err != nil {
		return nil, err
	}

	prev := pr.Version
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := r.pr.UpdateWithVersion(ctx, pr, prev); err != nil {
			return err
		}
		if edit.itemsChanged {
			return r.items.ReplaceForRequest(ctx, id, edit.items)
		}
		return nil
	})
	if err != nil {
		s.cleanupFiles(ctx, id, edit.added)
		return nil, wrapStoreError("purchase request", id, err)
	}

	var softs []*SoftFailure
	for _, name := range edit.removed {
		if soft := s.deleteFile(ctx, id, name, StepAttachmentCleanup); soft != nil {
			softs = append(softs, soft)
		}
	}

	result := &TransitionResult{Request: s.newDetail(pr, edit.items), Warnings: []string{}}
	s.afterTransition(ctx, actor, pr, "update", result, softs)
	return result, nil
}

// Submit 提交草稿进入部门主管审批
func (s *purchaseRequestService) Submit(ctx context.Context, actor Actor, id string) (*TransitionResult, error) {
	pr, err := s.loadForAction(ctx, id, workflow.ActionSubmit)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, pr); err != nil {
		return nil, err
	}
	items, err := s.itemRepo.FindByRequestID(ctx, id)
	if err != nil {
		return nil, wrapStoreError("purchase request items", id, err)
	}
	if err := validateForSubmit(pr, items); err != nil {
		return nil, err
	}

	now := s.now()
	prev := pr.Version
	workflow.Apply(pr, workflow.StatePending0)
	pr.SubmittedAt = &now
	pr.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := r.pr.UpdateWithVersion(ctx, pr, prev); err != nil {
			return err
		}
		return appendHistory(ctx, r.history, id, model.HistoryActionSubmit, actor,
			fmt.Sprintf("submitted with %d items, total %s", len(items), pr.TotalAmount.StringFixed(2)), nil, now)
	})
	if err != nil {
		return nil, wrapStoreError("purchase request", id, err)
	}

	result := &TransitionResult{Request: s.newDetail(pr, items), Warnings: []string{}}
	s.afterTransition(ctx, actor, pr, model.HistoryActionSubmit, result, nil)
	return result, nil
}

// Approve 审批采购申请
func (s *purchaseRequestService) Approve(ctx context.Context, actor Actor, id string, comment string) (*TransitionResult, error) {
	pr, err := s.loadForAction(ctx, id, workflow.ActionApprove)
	if err != nil {
		return nil, err
	}
	level := pr.ApprovalLevel
	if !policy.CanApprove(actor.Role, level) {
		return nil, AuthorizationError(CodeNotAuthorized, "role %q is not authorized to approve at level %d", actor.Role, level)
	}

	approver, err := s.userRepo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, wrapStoreError("user", actor.ID, err)
	}
	if approver.Signature == "" {
		return nil, ValidationError(CodeSignatureRequired, "upload your signature before approving")
	}

	from := workflow.StateOf(pr)
	to, err := workflow.Next(from, workflow.ActionApprove)
	if err != nil {
		return nil, wrapStoreError("purchase request", id, err)
	}
	_, final := policy.NextLevel(level)

	sig := s.captureSignature(ctx, approver, id)

	now := s.now()
	prev := pr.Version
	slot := model.ApprovalSlot{
		ApproverID:   approver.ID,
		ApproverName: approver.DisplayName(),
		ApprovedAt:   &now,
		Comment:      comment,
		Signature:    sig.Value,
	}
	if final {
		pr.Manager = slot
		pr.ApprovedAt = &now
	} else {
		pr.HeadOfDept = slot
	}
	workflow.Apply(pr, to)
	pr.UpdatedAt = now

	historyActor := Actor{ID: approver.ID, Name: approver.DisplayName(), Role: actor.Role}
	action := model.HistoryActionApproveLevel1
	if final {
		action = model.HistoryActionApproveFinal
	}

	var (
		items  []*model.PRItemModel
		report *StockReport
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		// 先做条件更新, 并发审批时只有一个请求能继续扣减库存
		if err := r.pr.UpdateWithVersion(ctx, pr, prev); err != nil {
			return err
		}
		var err error
		items, err = r.items.FindByRequestID(ctx, id)
		if err != nil {
			return err
		}

		detail := comment
		if final {
			report, err = s.applyStock(ctx, tx, pr, items)
			if err != nil {
				return err
			}
			detail = finalDetail(comment, report)
		}
		return appendHistory(ctx, r.history, id, action, historyActor, detail, nil, now)
	})
	if err != nil {
		softs := []*SoftFailure{}
		if sig.OK() && sig.Value != "" {
			if soft := s.deleteFile(ctx, id, sig.Value, StepSignatureCleanup); soft != nil {
				softs = append(softs, soft)
			}
		}
		s.logSoftFailures(ctx, pr.ID, softs)
		return nil, wrapStoreError("purchase request", id, err)
	}

	if report != nil {
		metrics.RecordStockDiagnostics(len(report.Shortfalls), len(report.Unresolved))
		if len(report.Unresolved) > 0 || len(report.Shortfalls) > 0 {
			s.log.WithFields(logrus.Fields{
				"purchase_request_id": pr.ID,
				"unresolved":          report.Unresolved,
				"shortfalls":          len(report.Shortfalls),
			}).Warn("stock bookkeeping mismatch on final approval")
		}
	}

	result := &TransitionResult{Request: s.newDetail(pr, items), Stock: report, Warnings: []string{}}
	var softs []*SoftFailure
	if sig.Soft != nil {
		softs = append(softs, sig.Soft)
	}
	s.afterTransition(ctx, actor, pr, action, result, softs)
	return result, nil
}

// applyStock 最终审批时按申请类型处理库存
func (s *purchaseRequestService) applyStock(ctx context.Context, tx *gorm.DB, pr *model.PurchaseRequestModel, items []*model.PRItemModel) (*StockReport, error) {
	projectID := ""
	if pr.ProjectID != nil {
		projectID = *pr.ProjectID
	}
	ledger := NewStockLedger(tx)
	ledger.now = s.now

	switch pr.EffectiveType() {
	case model.RequestTypeSub:
		return ledger.DeductItems(ctx, projectID, pr.ID, items)
	case model.RequestTypeProject:
		if projectID == "" {
			return nil, nil
		}
		return ledger.IntakeItems(ctx, projectID, pr.ID, items)
	}
	return nil, nil
}

func finalDetail(comment string, report *StockReport) string {
	parts := make([]string, 0, 2)
	if comment != "" {
		parts = append(parts, comment)
	}
	if report != nil {
		parts = append(parts, report.Summary())
	}
	if len(parts) == 0 {
		return "approved"
	}
	return strings.Join(parts, "; ")
}

// Reject 驳回采购申请, 清除两个层级的审批证据并保存当前附件快照
func (s *purchaseRequestService) Reject(ctx context.Context, actor Actor, id string, reason string) (*TransitionResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ValidationError(CodeInvalidInput, "rejection reason is required")
	}
	pr, err := s.loadForAction(ctx, id, workflow.ActionReject)
	if err != nil {
		return nil, err
	}
	if !policy.CanReject(actor.Role, pr.ApprovalLevel) {
		return nil, AuthorizationError(CodeNotAuthorized, "role %q is not authorized to reject at level %d", actor.Role, pr.ApprovalLevel)
	}

	now := s.now()
	prev := pr.Version
	snapshot := append([]string{}, pr.Attachments...)
	level := pr.ApprovalLevel

	pr.ClearApprovals()
	pr.RejectionReason = reason
	pr.RejectedBy = actor.ID
	pr.RejectedAt = &now
	pr.UpdatedAt = now
	workflow.Apply(pr, workflow.StateRejected)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := r.pr.UpdateWithVersion(ctx, pr, prev); err != nil {
			return err
		}
		return appendHistory(ctx, r.history, id, model.HistoryActionReject, actor,
			fmt.Sprintf("rejected at level %d: %s", level, reason), snapshot, now)
	})
	if err != nil {
		return nil, wrapStoreError("purchase request", id, err)
	}

	items, err := s.itemRepo.FindByRequestID(ctx, id)
	if err != nil {
		items = nil
	}
	result := &TransitionResult{Request: s.newDetail(pr, items), Warnings: []string{}}
	s.afterTransition(ctx, actor, pr, model.HistoryActionReject, result, nil)
	return result, nil
}

// Resubmit 修改被驳回的申请后重新提交, 审批从部门主管重新开始
// 被替换的附件文件保留, 驳回历史中的快照仍然引用它们
func (s *purchaseRequestService) Resubmit(ctx context.Context, actor Actor, id string, req *UpdateRequest) (*TransitionResult, error) {
	pr, err := s.loadForAction(ctx, id, workflow.ActionResubmit)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, pr); err != nil {
		return nil, err
	}

	edit, err := s.applyEdit(ctx, pr, req)
	if err != nil {
		return nil, err
	}
	if !edit.itemsChanged && !edit.attachmentsChanged {
		s.cleanupFiles(ctx, id, edit.added)
		return nil, ValidationError(CodeNoChanges, "edit line items or attachments before resubmitting")
	}
	if err := validateForSubmit(pr, edit.items); err != nil {
		s.cleanupFiles(ctx, id, edit.added)
		return nil, err
	}

	now := s.now()
	prev := pr.Version
	workflow.Apply(pr, workflow.StatePending0)
	pr.ClearApprovals()
	pr.RejectionReason = ""
	pr.RejectedBy = ""
	pr.RejectedAt = nil
	pr.SubmittedAt = &now
	pr.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := r.pr.UpdateWithVersion(ctx, pr, prev); err != nil {
			return err
		}
		if edit.itemsChanged {
			if err := r.items.ReplaceForRequest(ctx, id, edit.items); err != nil {
				return err
			}
		}
		return appendHistory(ctx, r.history, id, model.HistoryActionResubmit, actor,
			fmt.Sprintf("resubmitted with %d items, %d attachments", len(edit.items), len(pr.Attachments)), nil, now)
	})
	if err != nil {
		s.cleanupFiles(ctx, id, edit.added)
		return nil, wrapStoreError("purchase request", id, err)
	}

	result := &TransitionResult{Request: s.newDetail(pr, edit.items), Warnings: []string{}}
	s.afterTransition(ctx, actor, pr, model.HistoryActionResubmit, result, nil)
	return result, nil
}

// Delete 删除采购申请, 申请人或超级管理员可以操作, 历史记录保留
func (s *purchaseRequestService) Delete(ctx context.Context, actor Actor, id string) error {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return wrapStoreError("purchase request", id, err)
	}

	allowed := actor.IsSuperadmin() || pr.RequesterID == actor.ID
	if !allowed && s.authz != nil {
		ok, err := s.authz.CheckPermission(ctx, actor.ID, "operator", FGAObjectPurchaseRequest, id)
		if err != nil {
			return &Error{Kind: KindStore, Code: CodeStoreFailure, Message: "failed to check permission", Err: err}
		}
		allowed = ok
	}
	if !allowed {
		return AuthorizationError(CodeNotOwner, "only the requester or a superadmin can delete this request")
	}

	if err := s.prRepo.Delete(ctx, id); err != nil {
		return wrapStoreError("purchase request", id, err)
	}

	var softs []*SoftFailure
	if s.authz != nil {
		if err := s.authz.DeleteRelation(ctx, pr.RequesterID, "operator", FGAObjectPurchaseRequest, id); err != nil {
			softs = append(softs, &SoftFailure{Step: StepRelationWrite, Err: err})
		}
	}
	s.afterTransition(ctx, actor, pr, "delete", nil, softs)
	return nil
}

// loadForAction 加载申请并检查动作是否允许
func (s *purchaseRequestService) loadForAction(ctx context.Context, id string, action workflow.Action) (*model.PurchaseRequestModel, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreError("purchase request", id, err)
	}
	if _, err := workflow.Next(workflow.StateOf(pr), action); err != nil {
		return nil, &Error{
			Kind:    KindConflict,
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("cannot %s a request that is %s", action, pr.Status),
			Err:     err,
		}
	}
	return pr, nil
}

// editOutcome 编辑结果
type editOutcome struct {
	items              []*model.PRItemModel
	itemsChanged       bool
	attachmentsChanged bool
	added              []string
	removed            []string
}

// applyEdit 把编辑内容应用到申请上, 新附件在这里写入存储
func (s *purchaseRequestService) applyEdit(ctx context.Context, pr *model.PurchaseRequestModel, req *UpdateRequest) (*editOutcome, error) {
	if req == nil {
		req = &UpdateRequest{}
	}
	current, err := s.itemRepo.FindByRequestID(ctx, pr.ID)
	if err != nil {
		return nil, wrapStoreError("purchase request items", pr.ID, err)
	}

	out := &editOutcome{items: current}
	now := s.now()
	if req.Items != nil {
		items, err := buildItems(pr.ID, req.Items, now)
		if err != nil {
			return nil, err
		}
		out.items = items
		out.itemsChanged = !sameItems(current, items)
	}
	if req.ProjectID != nil {
		pr.ProjectID = normalizeID(req.ProjectID)
	}
	if req.VendorIDs != nil {
		pr.VendorIDs = dedupe(req.VendorIDs)
	}
	if req.Notes != nil {
		pr.Notes = *req.Notes
	}
	if err := s.validateReferences(ctx, pr); err != nil {
		return nil, err
	}

	kept := []string(pr.Attachments)
	if req.KeepAttachments != nil {
		keep := make(map[string]bool, len(req.KeepAttachments))
		for _, name := range req.KeepAttachments {
			keep[name] = true
		}
		kept = make([]string, 0, len(pr.Attachments))
		for _, name := range pr.Attachments {
			if keep[name] {
				kept = append(kept, name)
			} else {
				out.removed = append(out.removed, name)
			}
		}
	}

	added, err := s.storeUploads(ctx, pr.ID, req.NewAttachments)
	if err != nil {
		return nil, err
	}
	out.added = added
	out.attachmentsChanged = len(out.removed) > 0 || len(added) > 0

	pr.Attachments = append(append([]string{}, kept...), added...)
	pr.TotalAmount, pr.ReserveAmount = totals(out.items)
	pr.UpdatedAt = now
	return out, nil
}

// validateReferences 检查项目和供应商是否存在
func (s *purchaseRequestService) validateReferences(ctx context.Context, pr *model.PurchaseRequestModel) error {
	if pr.ProjectID != nil {
		if _, err := s.projectRepo.FindByID(ctx, *pr.ProjectID); err != nil {
			if KindOf(wrapStoreError("project", *pr.ProjectID, err)) == KindNotFound {
				return ValidationError(CodeProjectRequired, "project %s does not exist", *pr.ProjectID)
			}
			return wrapStoreError("project", *pr.ProjectID, err)
		}
	}
	if len(pr.VendorIDs) > 0 {
		vendors, err := s.vendorRepo.FindByIDs(ctx, pr.VendorIDs)
		if err != nil {
			return wrapStoreError("vendor", "", err)
		}
		if len(vendors) != len(pr.VendorIDs) {
			return ValidationError(CodeVendorRequired, "one or more vendors do not exist")
		}
	}
	return nil
}

// validateForSubmit 提交前检查: 至少一个有效行项, 项目和分包申请需要项目, 其他申请需要供应商
func validateForSubmit(pr *model.PurchaseRequestModel, items []*model.PRItemModel) error {
	valid := 0
	for _, it := range items {
		if it.IsValid() {
			valid++
		}
	}
	if valid == 0 {
		return ValidationError(CodeNoValidItems, "at least one line item with a name and quantity greater than 0 is required")
	}
	switch pr.EffectiveType() {
	case model.RequestTypeOther:
		if len(pr.VendorIDs) == 0 {
			return ValidationError(CodeVendorRequired, "choose a vendor for this request")
		}
	default:
		if pr.ProjectID == nil {
			return ValidationError(CodeProjectRequired, "choose a project for this request")
		}
	}
	return nil
}

// requireOwner 只有申请人或超级管理员可以编辑
func requireOwner(actor Actor, pr *model.PurchaseRequestModel) error {
	if actor.IsSuperadmin() || actor.ID == pr.RequesterID {
		return nil
	}
	return AuthorizationError(CodeNotOwner, "only the requester can edit this request")
}

// buildItems 校验行项输入并计算总价, 名称和数量都为空的行被忽略
func buildItems(requestID string, inputs []ItemInput, now time.Time) ([]*model.PRItemModel, error) {
	items := make([]*model.PRItemModel, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" && in.Quantity.IsZero() {
			continue
		}
		itemType := in.ItemType
		if itemType == "" {
			itemType = model.ItemTypeRegular
		}
		it := &model.PRItemModel{
			ID:            uuid.New().String(),
			RequestID:     requestID,
			Name:          name,
			Unit:          strings.TrimSpace(in.Unit),
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
			ProjectItemID: normalizeID(in.ProjectItemID),
			ItemType:      itemType,
			SortOrder:     len(items),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		it.Recalculate()
		if err := it.Validate(); err != nil {
			return nil, ValidationError(CodeInvalidInput, "item %d: %s", i+1, err.Error())
		}
		items = append(items, it)
	}
	return items, nil
}

// totals 普通行项总额和预留行项总额
func totals(items []*model.PRItemModel) (decimal.Decimal, decimal.Decimal) {
	total, reserve := decimal.Zero, decimal.Zero
	for _, it := range items {
		if it.IsReserve() {
			reserve = reserve.Add(it.TotalPrice)
		} else {
			total = total.Add(it.TotalPrice)
		}
	}
	return total, reserve
}

// sameItems 比较两组行项的内容
func sameItems(a, b []*model.PRItemModel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Name != y.Name || x.Unit != y.Unit || x.ItemType != y.ItemType ||
			!x.Quantity.Equal(y.Quantity) || !x.UnitPrice.Equal(y.UnitPrice) ||
			derefString(x.ProjectItemID) != derefString(y.ProjectItemID) {
			return false
		}
	}
	return true
}

// storeUploads 保存上传的附件, 失败时删除已保存的文件
func (s *purchaseRequestService) storeUploads(ctx context.Context, requestID string, uploads []Upload) ([]string, error) {
	names := make([]string, 0, len(uploads))
	if len(uploads) == 0 {
		return names, nil
	}
	if s.store == nil {
		return nil, &Error{Kind: KindStore, Code: CodeStoreFailure, Message: "attachment storage is not configured"}
	}
	for _, up := range uploads {
		name, err := s.store.Put(ctx, CollectionPurchaseRequests, requestID, up.Filename, up.Content)
		if err != nil {
			s.cleanupFiles(ctx, requestID, names)
			return nil, &Error{Kind: KindStore, Code: CodeStoreFailure, Message: fmt.Sprintf("failed to store attachment %q", up.Filename), Err: err}
		}
		names = append(names, name)
	}
	return names, nil
}

// captureSignature 把审批人的签名复制到申请下, 失败时审批继续
func (s *purchaseRequestService) captureSignature(ctx context.Context, approver *model.UserModel, requestID string) SideEffect[string] {
	if s.store == nil {
		return softFailed[string](StepSignatureCopy, fmt.Errorf("attachment storage is not configured"))
	}
	name, err := s.store.Copy(ctx, storage.Ref{
		Collection: CollectionUsers,
		RecordID:   approver.ID,
		Filename:   approver.Signature,
	}, CollectionPurchaseRequests, requestID)
	if err != nil {
		return softFailed[string](StepSignatureCopy, err)
	}
	return succeeded(name)
}

// deleteFile 尽力删除文件
func (s *purchaseRequestService) deleteFile(ctx context.Context, requestID, name, step string) *SoftFailure {
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, CollectionPurchaseRequests, requestID, name); err != nil {
		return &SoftFailure{Step: step, Err: fmt.Errorf("%s: %w", name, err)}
	}
	return nil
}

// cleanupFiles 回滚时删除本次写入的文件
func (s *purchaseRequestService) cleanupFiles(ctx context.Context, requestID string, names []string) {
	var softs []*SoftFailure
	for _, name := range names {
		if soft := s.deleteFile(ctx, requestID, name, StepAttachmentCleanup); soft != nil {
			softs = append(softs, soft)
		}
	}
	s.logSoftFailures(ctx, requestID, softs)
}

func (s *purchaseRequestService) logSoftFailures(ctx context.Context, requestID string, softs []*SoftFailure) {
	for _, f := range softs {
		metrics.RecordSoftFailure(f.Step)
		s.log.WithFields(logrus.Fields{
			"purchase_request_id": requestID,
			"request_id":          GetRequestID(ctx),
			"step":                f.Step,
		}).WithError(f.Err).Warn("side effect failed")
	}
}

// afterTransition 记录指标、审计日志、软失败, 并发布角标变化事件
func (s *purchaseRequestService) afterTransition(ctx context.Context, actor Actor, pr *model.PurchaseRequestModel, action string, result *TransitionResult, softs []*SoftFailure) {
	metrics.RecordTransition(action)

	if s.auditLogSvc != nil {
		details := map[string]interface{}{
			"request_number": pr.RequestNumber,
			"status":         pr.Status,
			"approval_level": pr.ApprovalLevel,
		}
		if err := s.auditLogSvc.RecordAction(ctx, actor.ID, action, model.ResourcePurchaseRequest, pr.ID, details); err != nil {
			softs = append(softs, &SoftFailure{Step: StepAuditLog, Err: err})
		}
	}

	s.logSoftFailures(ctx, pr.ID, softs)
	if result != nil {
		for _, f := range softs {
			result.Warnings = append(result.Warnings, f.Step)
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, EventBadgeCountsChanged, pr.ID, map[string]interface{}{
			"request_id":     pr.ID,
			"action":         action,
			"status":         pr.Status,
			"approval_level": pr.ApprovalLevel,
			"requester_id":   pr.RequesterID,
		})
	}
}

func (s *purchaseRequestService) newDetail(pr *model.PurchaseRequestModel, items []*model.PRItemModel) *RequestDetail {
	if items == nil {
		items = []*model.PRItemModel{}
	}
	return &RequestDetail{PurchaseRequestModel: pr, Items: items, Label: policy.StatusLabel(pr)}
}

// FGAObjectPurchaseRequest OpenFGA 对象类型
const FGAObjectPurchaseRequest = "purchase_request"

func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
