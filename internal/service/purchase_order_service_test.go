package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseOrderService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := f.addUser(t, "buyer", model.RolePurchasing, false)
	svc := service.NewPurchaseOrderService(
		repository.NewPurchaseRequestRepository(f.db),
		repository.NewPurchaseOrderRepository(f.db),
		repository.NewVendorRepository(f.db),
		service.NewAuditLogService(repository.NewAuditLogRepository(f.db)),
		nil,
	)

	res, err := f.svc.Create(ctx, f.requester, &service.CreateRequest{
		Type:      model.RequestTypeOther,
		VendorIDs: []string{f.vendor.ID},
		Items:     []service.ItemInput{{Name: "Toner", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(1500)}},
		Submit:    true,
	})
	require.NoError(t, err)
	id := res.Request.ID

	// 未批准的申请不能下单
	_, err = svc.Create(ctx, buyer, id, f.vendor.ID)
	requireKind(t, err, service.KindConflict, service.CodeInvalidTransition)

	_, err = f.svc.Approve(ctx, f.head, id, "")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.manager, id, "")
	require.NoError(t, err)

	_, err = svc.Create(ctx, f.requester, id, f.vendor.ID)
	requireKind(t, err, service.KindAuthorization, service.CodeNotAuthorized)

	_, err = svc.Create(ctx, buyer, id, "other-vendor")
	requireKind(t, err, service.KindValidation, service.CodeVendorNotOnPR)

	po, err := svc.Create(ctx, buyer, id, f.vendor.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(po.PONumber, "PO-"+time.Now().Format("2006-01-02")+"-1"))
	assert.Equal(t, f.vendor.Name, po.VendorName)
	assert.True(t, po.TotalAmount.Equal(decimal.NewFromInt(3000)))

	second, err := svc.Create(ctx, buyer, id, f.vendor.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(second.PONumber, "-2"))

	list, err := svc.ListByRequest(ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
