package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 历史记录动作
const (
	HistoryActionCreate        = "create"
	HistoryActionSubmit        = "submit"
	HistoryActionApproveLevel1 = "approve-level-1"
	HistoryActionApproveFinal  = "approve-final"
	HistoryActionReject        = "reject"
	HistoryActionResubmit      = "resubmit"
)

// PRHistoryModel 采购申请历史记录, 只追加不修改
type PRHistoryModel struct {
	ID             string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	RequestID      string                      `gorm:"type:varchar(64);not null;index" json:"request_id"`
	Action         string                      `gorm:"type:varchar(32);not null" json:"action"`
	ActorID        string                      `gorm:"type:varchar(64);not null" json:"actor_id"`
	ActorName      string                      `gorm:"type:varchar(255)" json:"actor_name"`
	Detail         string                      `gorm:"type:text" json:"detail"`
	OldAttachments datatypes.JSONSlice[string] `json:"old_attachments"`
	CreatedAt      time.Time                   `gorm:"not null;index" json:"created"`
}

// TableName 指定表名
func (PRHistoryModel) TableName() string {
	return "pr_history"
}

// Validate 验证历史记录模型
func (h *PRHistoryModel) Validate() error {
	if h.ID == "" {
		return errors.New("history ID is required")
	}
	if h.RequestID == "" {
		return errors.New("request ID is required")
	}
	if h.Action == "" {
		return errors.New("action is required")
	}
	if h.ActorID == "" {
		return errors.New("actor is required")
	}
	return nil
}
