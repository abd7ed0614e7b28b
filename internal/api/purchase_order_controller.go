package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/mautops/procurement-gin/internal/utils"
)

// PurchaseOrderController 采购订单控制器
type PurchaseOrderController struct {
	poService service.PurchaseOrderService
}

// NewPurchaseOrderController 创建采购订单控制器
func NewPurchaseOrderController(poService service.PurchaseOrderService) *PurchaseOrderController {
	return &PurchaseOrderController{poService: poService}
}

// CreatePurchaseOrderRequest 生成采购订单请求
type CreatePurchaseOrderRequest struct {
	VendorID string `json:"vendor_id"`
}

// Create 由已批准的采购申请生成采购订单
// @Summary      生成采购订单
// @Description  采购申请必须已批准, 供应商必须是申请中的供应商之一
// @Tags         采购订单
// @Accept       json
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Param        request body CreatePurchaseOrderRequest true "供应商"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /purchase-requests/{id}/purchase-orders [post]
// @Security     BearerAuth
func (c *PurchaseOrderController) Create(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	requestID, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req CreatePurchaseOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BadRequest(ctx, err)
		return
	}
	if err := utils.ValidateID(req.VendorID); err != nil {
		BadRequest(ctx, errors.New("invalid vendor_id"))
		return
	}

	po, err := c.poService.Create(ctx.Request.Context(), actor, requestID, req.VendorID)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Created(ctx, po)
}

// ListByRequest 采购申请的采购订单
// @Summary      采购申请的采购订单
// @Tags         采购订单
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Success      200  {object}  Response
// @Router       /purchase-requests/{id}/purchase-orders [get]
// @Security     BearerAuth
func (c *PurchaseOrderController) ListByRequest(ctx *gin.Context) {
	requestID, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	orders, err := c.poService.ListByRequest(ctx.Request.Context(), requestID)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, orders)
}

// Get 采购订单详情
// @Summary      采购订单详情
// @Tags         采购订单
// @Produce      json
// @Param        id path string true "采购订单 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /purchase-orders/{id} [get]
// @Security     BearerAuth
func (c *PurchaseOrderController) Get(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	po, err := c.poService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, po)
}
