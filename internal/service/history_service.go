package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
)

// HistoryEntry 历史记录展示项
type HistoryEntry struct {
	ID             string    `json:"id"`
	Action         string    `json:"action"`
	ActorID        string    `json:"actor_id"`
	ActorName      string    `json:"actor_name"`
	Detail         string    `json:"detail"`
	OldAttachments []string  `json:"old_attachments"`
	Date           time.Time `json:"date"`
	Synthesized    bool      `json:"synthesized,omitempty"` // 旧数据没有历史时根据时间戳生成
}

// HistoryService 历史记录服务接口
type HistoryService interface {
	GetHistory(ctx context.Context, requestID string) ([]HistoryEntry, error)
}

// historyService 历史记录服务实现
type historyService struct {
	prRepo      repository.PurchaseRequestRepository
	historyRepo repository.PRHistoryRepository
}

// NewHistoryService 创建历史记录服务
func NewHistoryService(prRepo repository.PurchaseRequestRepository, historyRepo repository.PRHistoryRepository) HistoryService {
	return &historyService{prRepo: prRepo, historyRepo: historyRepo}
}

// GetHistory 按时间升序返回历史记录
func (s *historyService) GetHistory(ctx context.Context, requestID string) ([]HistoryEntry, error) {
	pr, err := s.prRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapStoreError("purchase request", requestID, err)
	}
	rows, err := s.historyRepo.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, wrapStoreError("purchase request history", requestID, err)
	}

	if len(rows) == 0 {
		return synthesizeHistory(pr), nil
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, h := range rows {
		old := []string(h.OldAttachments)
		if old == nil {
			old = []string{}
		}
		entries = append(entries, HistoryEntry{
			ID:             h.ID,
			Action:         h.Action,
			ActorID:        h.ActorID,
			ActorName:      h.ActorName,
			Detail:         h.Detail,
			OldAttachments: old,
			Date:           h.CreatedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
	return entries, nil
}

// synthesizeHistory 为没有历史记录的旧数据生成创建和提交两条记录
func synthesizeHistory(pr *model.PurchaseRequestModel) []HistoryEntry {
	entries := []HistoryEntry{{
		ID:             pr.ID + "-create",
		Action:         model.HistoryActionCreate,
		ActorID:        pr.RequesterID,
		ActorName:      pr.RequesterName,
		OldAttachments: []string{},
		Date:           pr.CreatedAt,
		Synthesized:    true,
	}}
	if pr.Status == model.StatusDraft {
		return entries
	}
	submitted := pr.UpdatedAt
	if pr.SubmittedAt != nil {
		submitted = *pr.SubmittedAt
	}
	if submitted.Before(pr.CreatedAt) {
		submitted = pr.CreatedAt
	}
	return append(entries, HistoryEntry{
		ID:             pr.ID + "-submit",
		Action:         model.HistoryActionSubmit,
		ActorID:        pr.RequesterID,
		ActorName:      pr.RequesterName,
		OldAttachments: []string{},
		Date:           submitted,
		Synthesized:    true,
	})
}

// appendHistory 在事务中追加历史记录
func appendHistory(ctx context.Context, repo repository.PRHistoryRepository, requestID, action string, actor Actor, detail string, oldAttachments []string, at time.Time) error {
	if oldAttachments == nil {
		oldAttachments = []string{}
	}
	return repo.Append(ctx, &model.PRHistoryModel{
		ID:             uuid.New().String(),
		RequestID:      requestID,
		Action:         action,
		ActorID:        actor.ID,
		ActorName:      actor.Name,
		Detail:         detail,
		OldAttachments: oldAttachments,
		CreatedAt:      at,
	})
}
