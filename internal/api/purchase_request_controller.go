package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/mautops/procurement-gin/internal/utils"
)

// PurchaseRequestController 采购申请控制器
type PurchaseRequestController struct {
	prService      service.PurchaseRequestService
	historyService service.HistoryService
}

// NewPurchaseRequestController 创建采购申请控制器
func NewPurchaseRequestController(prService service.PurchaseRequestService, historyService service.HistoryService) *PurchaseRequestController {
	return &PurchaseRequestController{
		prService:      prService,
		historyService: historyService,
	}
}

// ApproveRequest 审批请求
type ApproveRequest struct {
	Comment string `json:"comment" example:"ok"`
}

// RejectRequest 驳回请求
type RejectRequest struct {
	Reason string `json:"reason" example:"wrong vendor"`
}

// writeResult 输出生命周期操作结果
func writeResult(ctx *gin.Context, result *service.TransitionResult) {
	if result.Request != nil {
		localizeLabel(ctx, &result.Request.Label)
	}
	Success(ctx, result)
}

// Create 创建采购申请
// @Summary      创建采购申请
// @Description  创建草稿或直接提交; multipart 请求的 JSON 放在 data 字段, 附件放在 attachments 字段
// @Tags         采购申请
// @Accept       json,mpfd
// @Produce      json
// @Param        request body service.CreateRequest true "采购申请"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /purchase-requests [post]
// @Security     BearerAuth
func (c *PurchaseRequestController) Create(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req service.CreateRequest
	uploads, files, err := bindWithUploads(ctx, &req, "attachments")
	if err != nil {
		BadRequest(ctx, err)
		return
	}
	defer files.Close()
	req.Attachments = uploads

	if req.Notes != "" {
		req.Notes = utils.SanitizeString(req.Notes)
	}

	result, err := c.prService.Create(ctx.Request.Context(), actor, &req)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	localizeLabel(ctx, &result.Request.Label)
	Created(ctx, result)
}

// List 查询采购申请列表
// @Summary      查询采购申请列表
// @Tags         采购申请
// @Produce      json
// @Param        status query string false "状态: draft, pending, approved, rejected"
// @Param        type query string false "类型: project, sub, other"
// @Param        level query int false "审批层级"
// @Param        project_id query string false "项目 ID"
// @Param        mine query bool false "只看自己的申请"
// @Param        keyword query string false "申请编号关键字"
// @Param        start_time query string false "开始时间 RFC3339"
// @Param        end_time query string false "结束时间 RFC3339"
// @Param        sort_by query string false "排序字段"
// @Param        sort_order query string false "asc 或 desc"
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Success      200  {object}  PaginatedResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /purchase-requests [get]
// @Security     BearerAuth
func (c *PurchaseRequestController) List(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	filter := &repository.PurchaseRequestFilter{
		Status:    queryString(ctx, "status"),
		Type:      queryString(ctx, "type"),
		ProjectID: queryString(ctx, "project_id"),
		Keyword:   queryString(ctx, "keyword"),
		StartTime: queryString(ctx, "start_time"),
		EndTime:   queryString(ctx, "end_time"),
		SortBy:    ctx.Query("sort_by"),
		SortOrder: utils.SanitizeSortOrder(ctx.Query("sort_order")),
	}
	if ctx.Query("mine") == "true" {
		filter.RequesterID = &actor.ID
	}
	if filter.SortBy != "" {
		if err := utils.ValidateSortField(filter.SortBy); err != nil {
			BadRequest(ctx, err)
			return
		}
	}
	if ctx.Query("level") != "" {
		level, err := queryInt(ctx, "level", 0)
		if err != nil {
			BadRequest(ctx, err)
			return
		}
		filter.ApprovalLevel = &level
	}
	var err error
	if filter.Page, err = queryInt(ctx, "page", 1); err != nil {
		BadRequest(ctx, err)
		return
	}
	if filter.PageSize, err = queryInt(ctx, "page_size", 20); err != nil {
		BadRequest(ctx, err)
		return
	}

	result, err := c.prService.List(ctx.Request.Context(), filter)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	for i := range result.Items {
		localizeLabel(ctx, &result.Items[i].Label)
	}
	Paginated(ctx, result.Items, NewPaginationInfo(result.Page, result.PageSize, result.Total))
}

// Get 获取采购申请详情
// @Summary      获取采购申请详情
// @Tags         采购申请
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /purchase-requests/{id} [get]
// @Security     BearerAuth
func (c *PurchaseRequestController) Get(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	detail, err := c.prService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	localizeLabel(ctx, &detail.Label)
	Success(ctx, detail)
}

// Update 编辑草稿
// @Summary      编辑草稿
// @Description  只有草稿可以编辑; keep_attachments 为保留的现有附件, 新附件放在 attachments 字段
// @Tags         采购申请
// @Accept       json,mpfd
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Param        request body service.UpdateRequest true "修改内容"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /purchase-requests/{id} [put]
// @Security     BearerAuth
func (c *PurchaseRequestController) Update(ctx *gin.Context) {
	c.edit(ctx, c.prService.UpdateDraft)
}

// Resubmit 驳回后重新提交
// @Summary      重新提交
// @Description  驳回的申请修改后重新进入部门主管审批
// @Tags         采购申请
// @Accept       json,mpfd
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Param        request body service.UpdateRequest true "修改内容"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /purchase-requests/{id}/resubmit [post]
// @Security     BearerAuth
func (c *PurchaseRequestController) Resubmit(ctx *gin.Context) {
	c.edit(ctx, c.prService.Resubmit)
}

type editFunc func(ctx context.Context, actor service.Actor, id string, req *service.UpdateRequest) (*service.TransitionResult, error)

func (c *PurchaseRequestController) edit(ctx *gin.Context, fn editFunc) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req service.UpdateRequest
	uploads, files, err := bindWithUploads(ctx, &req, "attachments")
	if err != nil {
		BadRequest(ctx, err)
		return
	}
	defer files.Close()
	req.NewAttachments = uploads

	result, err := fn(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	writeResult(ctx, result)
}

// Submit 提交草稿
// @Summary      提交草稿
// @Tags         采购申请
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /purchase-requests/{id}/submit [post]
// @Security     BearerAuth
func (c *PurchaseRequestController) Submit(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.prService.Submit(ctx.Request.Context(), actor, id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	writeResult(ctx, result)
}

// Approve 审批通过
// @Summary      审批通过
// @Description  按当前层级进行部门主管审批或最终审批, 审批人必须已上传签名
// @Tags         采购申请
// @Accept       json
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Param        request body ApproveRequest false "审批意见"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /purchase-requests/{id}/approve [post]
// @Security     BearerAuth
func (c *PurchaseRequestController) Approve(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req ApproveRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			BadRequest(ctx, err)
			return
		}
	}

	result, err := c.prService.Approve(ctx.Request.Context(), actor, id, utils.SanitizeString(req.Comment))
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	writeResult(ctx, result)
}

// Reject 驳回
// @Summary      驳回
// @Tags         采购申请
// @Accept       json
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Param        request body RejectRequest true "驳回原因"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /purchase-requests/{id}/reject [post]
// @Security     BearerAuth
func (c *PurchaseRequestController) Reject(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	var req RejectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BadRequest(ctx, err)
		return
	}
	reason, err := utils.TrimAndValidate(req.Reason, 1000)
	if err != nil {
		BadRequest(ctx, err)
		return
	}

	result, err := c.prService.Reject(ctx.Request.Context(), actor, id, reason)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	writeResult(ctx, result)
}

// Delete 删除采购申请
// @Summary      删除采购申请
// @Tags         采购申请
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /purchase-requests/{id} [delete]
// @Security     BearerAuth
func (c *PurchaseRequestController) Delete(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	if err := c.prService.Delete(ctx.Request.Context(), actor, id); err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, gin.H{"id": id, "message": T(ctx, "success.deleted")})
}

// History 获取审批历史
// @Summary      获取审批历史
// @Description  按时间升序返回, 旧数据没有历史记录时根据创建和更新时间生成
// @Tags         采购申请
// @Produce      json
// @Param        id path string true "采购申请 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /purchase-requests/{id}/history [get]
// @Security     BearerAuth
func (c *PurchaseRequestController) History(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	entries, err := c.historyService.GetHistory(ctx.Request.Context(), id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, entries)
}
