package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/service"
)

// StatisticsController 统计控制器
type StatisticsController struct {
	statsService service.StatisticsService
}

// NewStatisticsController 创建统计控制器
func NewStatisticsController(statsService service.StatisticsService) *StatisticsController {
	return &StatisticsController{statsService: statsService}
}

// Badges 导航角标计数
// @Summary      导航角标计数
// @Description  等待当前用户审批的数量、被驳回的申请和草稿数量
// @Tags         统计
// @Produce      json
// @Success      200  {object}  Response
// @Router       /badges [get]
// @Security     BearerAuth
func (c *StatisticsController) Badges(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	counts, err := c.statsService.GetBadgeCounts(ctx.Request.Context(), actor)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, counts)
}

// ByStatus 按状态统计
// @Summary      按状态统计
// @Tags         统计
// @Produce      json
// @Success      200  {object}  Response
// @Router       /statistics/status [get]
// @Security     BearerAuth
func (c *StatisticsController) ByStatus(ctx *gin.Context) {
	stats, err := c.statsService.GetStatisticsByStatus(ctx.Request.Context())
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, stats)
}

// ByTime 按日期统计
func (c *StatisticsController) ByTime(ctx *gin.Context) {
	stats, err := c.statsService.GetStatisticsByTime(ctx.Request.Context())
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, stats)
}

// Approvals 审批统计
func (c *StatisticsController) Approvals(ctx *gin.Context) {
	stats, err := c.statsService.GetApprovalStatistics(ctx.Request.Context())
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, stats)
}
