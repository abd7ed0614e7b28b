package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/service"
)

// ProjectController 项目控制器
type ProjectController struct {
	projectService service.ProjectService
	budgetService  service.BudgetService
}

// NewProjectController 创建项目控制器
func NewProjectController(projectService service.ProjectService, budgetService service.BudgetService) *ProjectController {
	return &ProjectController{
		projectService: projectService,
		budgetService:  budgetService,
	}
}

// List 项目列表
// @Summary      项目列表
// @Tags         项目
// @Produce      json
// @Success      200  {object}  Response
// @Router       /projects [get]
// @Security     BearerAuth
func (c *ProjectController) List(ctx *gin.Context) {
	projects, err := c.projectService.List(ctx.Request.Context())
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, projects)
}

// Get 项目详情
// @Summary      项目详情
// @Tags         项目
// @Produce      json
// @Param        id path string true "项目 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{id} [get]
// @Security     BearerAuth
func (c *ProjectController) Get(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	project, err := c.projectService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, project)
}

// Budget 项目预算使用情况
// @Summary      项目预算使用情况
// @Description  已用金额为 approved 和 pending 申请的总额, 预算为 0 时 percentage 为空
// @Tags         项目
// @Produce      json
// @Param        id path string true "项目 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{id}/budget [get]
// @Security     BearerAuth
func (c *ProjectController) Budget(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	status, err := c.budgetService.GetProjectBudgetStatus(ctx.Request.Context(), id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, status)
}

// Stock 项目库存
// @Summary      项目库存
// @Tags         项目
// @Produce      json
// @Param        id path string true "项目 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /projects/{id}/items [get]
// @Security     BearerAuth
func (c *ProjectController) Stock(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	lines, err := c.projectService.Stock(ctx.Request.Context(), id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, lines)
}

// Movements 库存行变动记录
// @Summary      库存行变动记录
// @Tags         项目
// @Produce      json
// @Param        id path string true "库存行 ID"
// @Success      200  {object}  Response
// @Router       /project-items/{id}/movements [get]
// @Security     BearerAuth
func (c *ProjectController) Movements(ctx *gin.Context) {
	id, ok := validateID(ctx, "id")
	if !ok {
		return
	}

	movements, err := c.projectService.Movements(ctx.Request.Context(), id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, movements)
}
