package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/mautops/procurement-gin/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireKind(t *testing.T, err error, kind service.ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, service.KindOf(err))
	var se *service.Error
	require.ErrorAs(t, err, &se)
	if code != "" {
		assert.Equal(t, code, se.Code)
	}
}

func TestPurchaseRequestService_SubApprovalDeductsStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pr := f.createSub(t, 10)
	assert.True(t, strings.HasPrefix(pr.RequestNumber, "PR-"+time.Now().Format("2006-01-02")+"-"))
	assert.Equal(t, model.StatusPending, pr.Status)
	assert.Equal(t, model.LevelHeadOfDept, pr.ApprovalLevel)
	assert.True(t, pr.TotalAmount.Equal(decimal.NewFromInt(250)))

	// 部门主管审批
	res, err := f.svc.Approve(ctx, f.head, pr.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, res.Request.Status)
	assert.Equal(t, model.LevelManager, res.Request.ApprovalLevel)
	assert.Equal(t, f.head.ID, res.Request.HeadOfDept.ApproverID)
	assert.NotEmpty(t, res.Request.HeadOfDept.Signature)
	assert.Nil(t, res.Stock)
	assert.True(t, f.stockQuantity(t).Equal(decimal.NewFromInt(50)))

	// 最终审批扣减库存
	res, err = f.svc.Approve(ctx, f.manager, pr.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, res.Request.Status)
	assert.NotNil(t, res.Request.ApprovedAt)
	assert.NotEmpty(t, res.Request.Manager.Signature)
	require.NotNil(t, res.Stock)
	assert.Equal(t, 1, res.Stock.Updated)
	assert.Empty(t, res.Stock.Unresolved)
	assert.True(t, f.stockQuantity(t).Equal(decimal.NewFromInt(40)))
	assert.Equal(t, "status.fully_approved", res.Request.Label.Key)

	assert.Equal(t, []string{
		model.HistoryActionCreate,
		model.HistoryActionApproveLevel1,
		model.HistoryActionApproveFinal,
	}, historyActions(t, f.db, pr.ID))

	// 签名副本保存在申请下
	rc, err := f.store.Open(ctx, service.CollectionPurchaseRequests, pr.ID, res.Request.Manager.Signature)
	require.NoError(t, err)
	rc.Close()

	// 再次审批被拒绝, 库存不再变化
	_, err = f.svc.Approve(ctx, f.manager, pr.ID, "")
	requireKind(t, err, service.KindConflict, service.CodeInvalidTransition)
	assert.True(t, f.stockQuantity(t).Equal(decimal.NewFromInt(40)))

	movements, err := repository.NewStockMovementRepository(f.db).FindByRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.True(t, movements[0].Delta.Equal(decimal.NewFromInt(-10)))
}

func TestPurchaseRequestService_RejectAndResubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ref := f.stockLine.ID
	created, err := f.svc.Create(ctx, f.requester, &service.CreateRequest{
		Type:      model.RequestTypeSub,
		ProjectID: &f.project.ID,
		Items:     []service.ItemInput{{Name: "Cable", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(25), ProjectItemID: &ref}},
		Submit:    true,
		Attachments: []service.Upload{
			{Filename: "quote.pdf", Content: strings.NewReader("quote")},
		},
	})
	require.NoError(t, err)
	pr := created.Request
	require.Len(t, pr.Attachments, 1)
	original := pr.Attachments[0]

	_, err = f.svc.Approve(ctx, f.head, pr.ID, "")
	require.NoError(t, err)

	// 经理驳回
	res, err := f.svc.Reject(ctx, f.manager, pr.ID, "wrong vendor")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, res.Request.Status)
	assert.Equal(t, "wrong vendor", res.Request.RejectionReason)
	assert.Equal(t, f.manager.ID, res.Request.RejectedBy)
	assert.True(t, res.Request.HeadOfDept.IsEmpty())
	assert.True(t, res.Request.Manager.IsEmpty())

	rows, err := repository.NewPRHistoryRepository(f.db).FindByRequestID(ctx, pr.ID)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	assert.Equal(t, model.HistoryActionReject, last.Action)
	assert.Equal(t, []string{original}, []string(last.OldAttachments))

	// 没有修改不能重新提交
	_, err = f.svc.Resubmit(ctx, f.requester, pr.ID, &service.UpdateRequest{})
	requireKind(t, err, service.KindValidation, service.CodeNoChanges)

	// 其他人不能重新提交
	_, err = f.svc.Resubmit(ctx, f.head, pr.ID, &service.UpdateRequest{
		Items: []service.ItemInput{{Name: "Cable", Quantity: decimal.NewFromInt(8), UnitPrice: decimal.NewFromInt(25), ProjectItemID: &ref}},
	})
	requireKind(t, err, service.KindAuthorization, service.CodeNotOwner)

	res, err = f.svc.Resubmit(ctx, f.requester, pr.ID, &service.UpdateRequest{
		KeepAttachments: []string{},
		NewAttachments:  []service.Upload{{Filename: "quote-v2.pdf", Content: strings.NewReader("quote v2")}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, res.Request.Status)
	assert.Equal(t, model.LevelHeadOfDept, res.Request.ApprovalLevel)
	assert.Empty(t, res.Request.RejectionReason)
	assert.Nil(t, res.Request.RejectedAt)
	require.Len(t, res.Request.Attachments, 1)
	assert.NotEqual(t, original, res.Request.Attachments[0])

	// 被替换的附件仍然保留, 驳回历史引用它
	rc, err := f.store.Open(ctx, service.CollectionPurchaseRequests, pr.ID, original)
	require.NoError(t, err)
	rc.Close()

	assert.Equal(t, model.HistoryActionResubmit, historyActions(t, f.db, pr.ID)[len(rows)])
}

func TestPurchaseRequestService_RejectAtLevelZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pr := f.createSub(t, 5)

	// 层级 0 只能由部门主管驳回
	_, err := f.svc.Reject(ctx, f.manager, pr.ID, "no")
	requireKind(t, err, service.KindAuthorization, service.CodeNotAuthorized)

	_, err = f.svc.Reject(ctx, f.head, pr.ID, "  ")
	requireKind(t, err, service.KindValidation, service.CodeInvalidInput)

	res, err := f.svc.Reject(ctx, f.head, pr.ID, "missing quote")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, res.Request.Status)

	res, err = f.svc.Resubmit(ctx, f.requester, pr.ID, &service.UpdateRequest{
		Items: []service.ItemInput{{Name: "Cable", Quantity: decimal.NewFromInt(6), UnitPrice: decimal.NewFromInt(25)}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.LevelHeadOfDept, res.Request.ApprovalLevel)
	assert.True(t, res.Request.TotalAmount.Equal(decimal.NewFromInt(150)))
}

func TestPurchaseRequestService_ApproveAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pr := f.createSub(t, 10)

	tests := []struct {
		name  string
		actor service.Actor
	}{
		{"requester", f.requester},
		{"manager at level 0", f.manager},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Approve(ctx, tt.actor, pr.ID, "")
			requireKind(t, err, service.KindAuthorization, service.CodeNotAuthorized)
		})
	}

	_, err := f.svc.Approve(ctx, f.head, pr.ID, "")
	require.NoError(t, err)

	// 层级 1 部门主管无权审批
	_, err = f.svc.Approve(ctx, f.head, pr.ID, "")
	requireKind(t, err, service.KindAuthorization, service.CodeNotAuthorized)

	detail, err := f.svc.Get(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, detail.Status)
	assert.Equal(t, model.LevelManager, detail.ApprovalLevel)

	// 超级管理员可以审批任意层级
	res, err := f.svc.Approve(ctx, f.admin, pr.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, res.Request.Status)
}

func TestPurchaseRequestService_ApproveRequiresSignature(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pr := f.createSub(t, 10)

	_, err := f.svc.Approve(ctx, f.head, pr.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.noSig, pr.ID, "")
	requireKind(t, err, service.KindValidation, service.CodeSignatureRequired)

	detail, err := f.svc.Get(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, detail.Status)
	assert.Equal(t, model.LevelManager, detail.ApprovalLevel)
	assert.True(t, detail.Manager.IsEmpty())
	assert.True(t, f.stockQuantity(t).Equal(decimal.NewFromInt(50)))
}

func TestPurchaseRequestService_SignatureCopyFailureIsSoft(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithStore(t, func(s storage.BlobStore) storage.BlobStore {
		return &failingCopyStore{BlobStore: s}
	})
	pr := f.createSub(t, 10)

	res, err := f.svc.Approve(ctx, f.head, pr.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.LevelManager, res.Request.ApprovalLevel)
	assert.Empty(t, res.Request.HeadOfDept.Signature)
	assert.Equal(t, f.head.ID, res.Request.HeadOfDept.ApproverID)
	assert.Contains(t, res.Warnings, service.StepSignatureCopy)

	found := false
	for _, e := range f.logHook.AllEntries() {
		if e.Data["step"] == service.StepSignatureCopy {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPurchaseRequestService_StockClampsAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pr := f.createSub(t, 80)

	_, err := f.svc.Approve(ctx, f.head, pr.ID, "")
	require.NoError(t, err)
	res, err := f.svc.Approve(ctx, f.manager, pr.ID, "")
	require.NoError(t, err)

	assert.True(t, f.stockQuantity(t).IsZero())
	require.Len(t, res.Stock.Shortfalls, 1)
	assert.True(t, res.Stock.Shortfalls[0].Available.Equal(decimal.NewFromInt(50)))
}

func TestPurchaseRequestService_ReserveAndUnresolvedItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pr := f.createSub(t, 10,
		service.ItemInput{Name: "Cable", Quantity: decimal.NewFromInt(20), UnitPrice: decimal.NewFromInt(25), ItemType: model.ItemTypeReserve},
		service.ItemInput{Name: "Conduit", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(100)},
	)
	// 预留行项不计入总额
	assert.True(t, pr.TotalAmount.Equal(decimal.NewFromInt(550)))
	assert.True(t, pr.ReserveAmount.Equal(decimal.NewFromInt(500)))

	_, err := f.svc.Approve(ctx, f.head, pr.ID, "")
	require.NoError(t, err)
	res, err := f.svc.Approve(ctx, f.manager, pr.ID, "looks good")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stock.Updated)
	assert.Equal(t, 1, res.Stock.Reserved)
	assert.Equal(t, []string{"Conduit"}, res.Stock.Unresolved)
	assert.True(t, f.stockQuantity(t).Equal(decimal.NewFromInt(40)))

	rows, err := repository.NewPRHistoryRepository(f.db).FindByRequestID(ctx, pr.ID)
	require.NoError(t, err)
	final := rows[len(rows)-1]
	assert.Equal(t, model.HistoryActionApproveFinal, final.Action)
	assert.Contains(t, final.Detail, "looks good")
	assert.Contains(t, final.Detail, "unresolved 1")
}

func TestPurchaseRequestService_StockFallsBackToName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Create(ctx, f.requester, &service.CreateRequest{
		Type:      model.RequestTypeSub,
		ProjectID: &f.project.ID,
		Items:     []service.ItemInput{{Name: "Cable", Quantity: decimal.NewFromInt(7), UnitPrice: decimal.NewFromInt(25)}},
		Submit:    true,
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.head, res.Request.ID, "")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.manager, res.Request.ID, "")
	require.NoError(t, err)

	assert.True(t, f.stockQuantity(t).Equal(decimal.NewFromInt(43)))
}

func TestPurchaseRequestService_ProjectApprovalIntakesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Create(ctx, f.requester, &service.CreateRequest{
		Type:      model.RequestTypeProject,
		ProjectID: &f.project.ID,
		Items: []service.ItemInput{
			{Name: "Cable", Quantity: decimal.NewFromInt(30), UnitPrice: decimal.NewFromInt(25)},
			{Name: "Breaker", Unit: "pcs", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(900)},
		},
		Submit: true,
	})
	require.NoError(t, err)
	id := res.Request.ID

	_, err = f.svc.Approve(ctx, f.head, id, "")
	require.NoError(t, err)
	res, err = f.svc.Approve(ctx, f.manager, id, "")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stock.Updated)
	assert.Equal(t, 1, res.Stock.Created)
	assert.True(t, f.stockQuantity(t).Equal(decimal.NewFromInt(80)))

	breaker, err := repository.NewProjectItemRepository(f.db).FindByProjectAndName(ctx, f.project.ID, "Breaker")
	require.NoError(t, err)
	assert.True(t, breaker.Quantity.Equal(decimal.NewFromInt(4)))
	assert.True(t, breaker.InitialQuantity.Valid)

	// 行项回写库存行关联
	items, err := repository.NewPRItemRepository(f.db).FindByRequestID(ctx, id)
	require.NoError(t, err)
	for _, it := range items {
		require.NotNil(t, it.ProjectItemID)
	}
}

func TestPurchaseRequestService_OtherTypeRequiresVendor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	items := []service.ItemInput{{Name: "Printer paper", Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(120)}}

	_, err := f.svc.Create(ctx, f.requester, &service.CreateRequest{Type: model.RequestTypeOther, Items: items, Submit: true})
	requireKind(t, err, service.KindValidation, service.CodeVendorRequired)

	_, err = f.svc.Create(ctx, f.requester, &service.CreateRequest{Type: model.RequestTypeOther, Items: items, VendorIDs: []string{"missing"}, Submit: true})
	requireKind(t, err, service.KindValidation, service.CodeVendorRequired)

	res, err := f.svc.Create(ctx, f.requester, &service.CreateRequest{Type: model.RequestTypeOther, Items: items, VendorIDs: []string{f.vendor.ID}, Submit: true})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.head, res.Request.ID, "")
	require.NoError(t, err)
	res, err = f.svc.Approve(ctx, f.manager, res.Request.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, res.Request.Status)
	assert.Nil(t, res.Stock)
	assert.True(t, f.stockQuantity(t).Equal(decimal.NewFromInt(50)))
}

func TestPurchaseRequestService_DraftAndSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 名称和数量都为空的行被忽略
	res, err := f.svc.Create(ctx, f.requester, &service.CreateRequest{
		Type:      model.RequestTypeSub,
		ProjectID: &f.project.ID,
		Items:     []service.ItemInput{{Name: ""}},
	})
	require.NoError(t, err)
	draft := res.Request
	assert.Equal(t, model.StatusDraft, draft.Status)
	assert.Empty(t, draft.Items)
	assert.Equal(t, "status.draft", draft.Label.Key)

	_, err = f.svc.Submit(ctx, f.requester, draft.ID)
	requireKind(t, err, service.KindValidation, service.CodeNoValidItems)

	// 名称为空但数量不为空是错误
	_, err = f.svc.UpdateDraft(ctx, f.requester, draft.ID, &service.UpdateRequest{
		Items: []service.ItemInput{{Name: " ", Quantity: decimal.NewFromInt(2)}},
	})
	requireKind(t, err, service.KindValidation, service.CodeInvalidInput)

	_, err = f.svc.UpdateDraft(ctx, f.head, draft.ID, &service.UpdateRequest{})
	requireKind(t, err, service.KindAuthorization, service.CodeNotOwner)

	upd, err := f.svc.UpdateDraft(ctx, f.requester, draft.ID, &service.UpdateRequest{
		Items: []service.ItemInput{{Name: "Cable", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.125")}},
	})
	require.NoError(t, err)
	require.Len(t, upd.Request.Items, 1)
	assert.Equal(t, "20.25", upd.Request.Items[0].TotalPrice.StringFixed(2))

	sub, err := f.svc.Submit(ctx, f.requester, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, sub.Request.Status)
	assert.NotNil(t, sub.Request.SubmittedAt)

	// 已提交的申请不能再编辑或提交
	_, err = f.svc.Submit(ctx, f.requester, draft.ID)
	requireKind(t, err, service.KindConflict, service.CodeInvalidTransition)
	_, err = f.svc.UpdateDraft(ctx, f.requester, draft.ID, &service.UpdateRequest{})
	requireKind(t, err, service.KindConflict, service.CodeInvalidTransition)

	assert.Equal(t, []string{model.HistoryActionCreate, model.HistoryActionSubmit}, historyActions(t, f.db, draft.ID))
}

func TestPurchaseRequestService_ProjectRequired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	items := []service.ItemInput{{Name: "Cable", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(25)}}

	_, err := f.svc.Create(ctx, f.requester, &service.CreateRequest{Type: model.RequestTypeSub, Items: items, Submit: true})
	requireKind(t, err, service.KindValidation, service.CodeProjectRequired)

	missing := uuid.New().String()
	_, err = f.svc.Create(ctx, f.requester, &service.CreateRequest{Type: model.RequestTypeSub, ProjectID: &missing, Items: items})
	requireKind(t, err, service.KindValidation, service.CodeProjectRequired)

	_, err = f.svc.Create(ctx, f.requester, &service.CreateRequest{Type: "lease", Items: items})
	requireKind(t, err, service.KindValidation, service.CodeInvalidInput)
}

func TestPurchaseRequestService_UpdateDraftRemovesAttachments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Create(ctx, f.requester, &service.CreateRequest{
		Type:      model.RequestTypeSub,
		ProjectID: &f.project.ID,
		Attachments: []service.Upload{
			{Filename: "a.pdf", Content: strings.NewReader("a")},
			{Filename: "b.pdf", Content: strings.NewReader("b")},
		},
	})
	require.NoError(t, err)
	pr := res.Request
	require.Len(t, pr.Attachments, 2)
	keep, drop := pr.Attachments[0], pr.Attachments[1]

	upd, err := f.svc.UpdateDraft(ctx, f.requester, pr.ID, &service.UpdateRequest{KeepAttachments: []string{keep}})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, []string(upd.Request.Attachments))
	assert.Equal(t, pr.Version+1, upd.Request.Version)

	_, err = f.store.Open(ctx, service.CollectionPurchaseRequests, pr.ID, drop)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPurchaseRequestService_Numbering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.createSub(t, 1)
	second := f.createSub(t, 1)

	prefix := "PR-" + time.Now().Format("2006-01-02") + "-"
	assert.Equal(t, prefix+"1", first.RequestNumber)
	assert.Equal(t, prefix+"2", second.RequestNumber)

	list, err := f.svc.List(ctx, &repository.PurchaseRequestFilter{SortBy: "request_number", SortOrder: "asc"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, prefix+"1", list.Items[0].RequestNumber)
	assert.Equal(t, "status.awaiting_head_of_dept", list.Items[0].Label.Key)
}

func TestPurchaseRequestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pr := f.createSub(t, 3)

	err := f.svc.Delete(ctx, f.head, pr.ID)
	requireKind(t, err, service.KindAuthorization, service.CodeNotOwner)

	require.NoError(t, f.svc.Delete(ctx, f.requester, pr.ID))

	_, err = f.svc.Get(ctx, pr.ID)
	requireKind(t, err, service.KindNotFound, service.CodeNotFound)

	// 历史记录保留
	assert.NotEmpty(t, historyActions(t, f.db, pr.ID))
}

// relationAuthorizer 内存中的关系表
type relationAuthorizer struct {
	mu        sync.Mutex
	relations map[string]bool
}

func (a *relationAuthorizer) key(userID, relation, objectType, objectID string) string {
	return objectType + ":" + objectID + "#" + relation + "@" + userID
}

func (a *relationAuthorizer) CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.relations[a.key(userID, relation, objectType, objectID)], nil
}

func (a *relationAuthorizer) SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.relations[a.key(userID, relation, objectType, objectID)] = true
	return nil
}

func (a *relationAuthorizer) DeleteRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.relations, a.key(userID, relation, objectType, objectID))
	return nil
}

func TestPurchaseRequestService_DeleteWithRelations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	authz := &relationAuthorizer{relations: map[string]bool{}}
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(f.db))
	f.svc = service.NewPurchaseRequestService(f.db, f.store, audit, f.publisher, authz, nil)

	pr := f.createSub(t, 3)
	ok, err := authz.CheckPermission(ctx, f.requester.ID, "operator", service.FGAObjectPurchaseRequest, pr.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// 被授予 operator 的用户可以删除
	require.NoError(t, authz.SetRelation(ctx, f.head.ID, "operator", service.FGAObjectPurchaseRequest, pr.ID))
	require.NoError(t, f.svc.Delete(ctx, f.head, pr.ID))

	ok, err = authz.CheckPermission(ctx, f.requester.ID, "operator", service.FGAObjectPurchaseRequest, pr.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPurchaseRequestService_PublishesBadgeEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pr := f.createSub(t, 3)
	before := f.publisher.count()

	_, err := f.svc.Approve(ctx, f.head, pr.ID, "")
	require.NoError(t, err)
	assert.Equal(t, before+1, f.publisher.count())

	// 失败的操作不发布事件
	_, err = f.svc.Approve(ctx, f.head, pr.ID, "")
	require.Error(t, err)
	assert.Equal(t, before+1, f.publisher.count())
}

func TestPurchaseRequestService_ConcurrentFinalApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pr := f.createSub(t, 10)
	_, err := f.svc.Approve(ctx, f.head, pr.ID, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []service.Actor{f.manager, f.admin} {
		wg.Add(1)
		go func(i int, actor service.Actor) {
			defer wg.Done()
			_, errs[i] = f.svc.Approve(ctx, actor, pr.ID, "")
		}(i, actor)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, service.KindConflict, service.KindOf(err))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, f.stockQuantity(t).Equal(decimal.NewFromInt(40)))
}
