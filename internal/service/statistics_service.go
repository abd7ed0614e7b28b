package service

import (
	"context"
	"fmt"

	"github.com/mautops/procurement-gin/internal/metrics"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/policy"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetBadgeCounts(ctx context.Context, actor Actor) (*BadgeCounts, error)
	GetStatisticsByStatus(ctx context.Context) ([]*StatisticsByStatus, error)
	GetStatisticsByTime(ctx context.Context) ([]*StatisticsByTime, error)
	GetApprovalStatistics(ctx context.Context) (*ApprovalStatistics, error)
}

// BadgeCounts 导航角标计数
type BadgeCounts struct {
	AwaitingApproval int64 `json:"awaiting_approval"` // 等待当前用户审批
	Rejected         int64 `json:"rejected"`          // 当前用户被驳回的申请
	Drafts           int64 `json:"drafts"`
}

// StatisticsByStatus 按状态统计
type StatisticsByStatus struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// StatisticsByTime 按日期统计
type StatisticsByTime struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ApprovalStatistics 审批统计
type ApprovalStatistics struct {
	Submitted           int64   `json:"submitted"`
	ApprovedCount       int64   `json:"approved_count"`
	RejectedCount       int64   `json:"rejected_count"`
	ApprovalRate        float64 `json:"approval_rate"`
	AverageApprovalTime float64 `json:"average_approval_time"` // 单位：秒, 提交到最终审批
}

// statisticsService 统计服务实现
type statisticsService struct {
	db *gorm.DB
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetBadgeCounts 计算当前用户的角标
func (s *statisticsService) GetBadgeCounts(ctx context.Context, actor Actor) (*BadgeCounts, error) {
	counts := &BadgeCounts{}
	db := s.db.WithContext(ctx).Model(&model.PurchaseRequestModel{})

	if levels := policy.LevelsFor(actor.Role); len(levels) > 0 {
		if err := db.Session(&gorm.Session{}).
			Where("status = ? AND approval_level IN ?", model.StatusPending, levels).
			Count(&counts.AwaitingApproval).Error; err != nil {
			return nil, wrapStoreError("badge counts", actor.ID, err)
		}
	}
	if err := db.Session(&gorm.Session{}).
		Where("status = ? AND requester_id = ?", model.StatusRejected, actor.ID).
		Count(&counts.Rejected).Error; err != nil {
		return nil, wrapStoreError("badge counts", actor.ID, err)
	}
	if err := db.Session(&gorm.Session{}).
		Where("status = ? AND requester_id = ?", model.StatusDraft, actor.ID).
		Count(&counts.Drafts).Error; err != nil {
		return nil, wrapStoreError("badge counts", actor.ID, err)
	}
	return counts, nil
}

// GetStatisticsByStatus 按状态统计采购申请
func (s *statisticsService) GetStatisticsByStatus(ctx context.Context) ([]*StatisticsByStatus, error) {
	var results []*StatisticsByStatus
	err := s.db.WithContext(ctx).Model(&model.PurchaseRequestModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics by status: %w", err)
	}
	return results, nil
}

// GetStatisticsByTime 按创建日期统计采购申请
func (s *statisticsService) GetStatisticsByTime(ctx context.Context) ([]*StatisticsByTime, error) {
	var results []*StatisticsByTime
	err := s.db.WithContext(ctx).Model(&model.PurchaseRequestModel{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Group("DATE(created_at)").
		Order("date DESC").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics by time: %w", err)
	}
	return results, nil
}

// GetApprovalStatistics 根据历史记录统计审批情况
func (s *statisticsService) GetApprovalStatistics(ctx context.Context) (*ApprovalStatistics, error) {
	stats := &ApprovalStatistics{}
	history := s.db.WithContext(ctx).Model(&model.PRHistoryModel{})

	if err := history.Session(&gorm.Session{}).
		Where("action = ?", model.HistoryActionApproveFinal).
		Count(&stats.ApprovedCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count approvals: %w", err)
	}
	if err := history.Session(&gorm.Session{}).
		Where("action = ?", model.HistoryActionReject).
		Count(&stats.RejectedCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count rejections: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.PurchaseRequestModel{}).
		Where("submitted_at IS NOT NULL").
		Count(&stats.Submitted).Error; err != nil {
		return nil, fmt.Errorf("failed to count submitted requests: %w", err)
	}

	decided := stats.ApprovedCount + stats.RejectedCount
	if decided > 0 {
		stats.ApprovalRate = float64(stats.ApprovedCount) / float64(decided) * 100
	}

	var approved []*model.PurchaseRequestModel
	if err := s.db.WithContext(ctx).
		Select("id", "submitted_at", "approved_at").
		Where("status = ? AND submitted_at IS NOT NULL AND approved_at IS NOT NULL", model.StatusApproved).
		Find(&approved).Error; err != nil {
		return nil, fmt.Errorf("failed to load approved requests: %w", err)
	}
	if len(approved) > 0 {
		var total float64
		for _, pr := range approved {
			total += pr.ApprovedAt.Sub(*pr.SubmittedAt).Seconds()
		}
		stats.AverageApprovalTime = total / float64(len(approved))
	}

	return stats, nil
}

// StatusMetricsSource 定期刷新状态分布指标
type StatusMetricsSource struct {
	Stats StatisticsService
}

// Name 指标来源名称
func (m *StatusMetricsSource) Name() string {
	return "requests_by_status"
}

// Collect 刷新状态分布指标
func (m *StatusMetricsSource) Collect(ctx context.Context) error {
	rows, err := m.Stats.GetStatisticsByStatus(ctx)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, r := range rows {
		metrics.SetRequestsByStatus(r.Status, float64(r.Count))
		seen[r.Status] = true
	}
	for _, status := range []string{model.StatusDraft, model.StatusPending, model.StatusApproved, model.StatusRejected} {
		if !seen[status] {
			metrics.SetRequestsByStatus(status, 0)
		}
	}
	return nil
}
