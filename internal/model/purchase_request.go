package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 采购申请类型
const (
	RequestTypeProject = "project"
	RequestTypeSub     = "sub"
	RequestTypeOther   = "other"
)

// 采购申请状态
const (
	StatusDraft    = "draft"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// 审批层级
const (
	LevelHeadOfDept = 0 // 等待部门主管审批
	LevelManager    = 1 // 等待经理审批
)

// ApprovalSlot 单个审批层级的审批证据
// ApproverName 是审批时的显示名快照, 以 ApproverID 为准, 用户改名后快照不会更新
type ApprovalSlot struct {
	ApproverID   string     `gorm:"type:varchar(64)" json:"approver_id,omitempty"`
	ApproverName string     `gorm:"type:varchar(255)" json:"approver_name,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	Comment      string     `gorm:"type:text" json:"comment,omitempty"`
	Signature    string     `gorm:"type:varchar(255)" json:"signature,omitempty"` // 审批时复制的签名文件名
}

// IsEmpty 是否没有任何审批证据
func (s ApprovalSlot) IsEmpty() bool {
	return s.ApproverID == "" && s.ApprovedAt == nil && s.Signature == ""
}

// PurchaseRequestModel 采购申请
type PurchaseRequestModel struct {
	ID            string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	RequestNumber string `gorm:"type:varchar(64);not null;index" json:"request_number"` // PR-YYYY-MM-DD-N
	Type          string `gorm:"type:varchar(16)" json:"type"`
	Status        string `gorm:"type:varchar(16);not null;index" json:"status"`
	ApprovalLevel int    `gorm:"not null;default:0;index" json:"approval_level"`

	ProjectID *string                     `gorm:"type:varchar(64);index" json:"project_id,omitempty"`
	VendorIDs datatypes.JSONSlice[string] `json:"vendor_ids"`

	RequesterID   string `gorm:"type:varchar(64);not null;index" json:"requester_id"`
	RequesterName string `gorm:"type:varchar(255)" json:"requester_name"` // 显示名快照

	TotalAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_amount"`
	ReserveAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"reserve_amount"`

	// 只保存当前版本, 被替换的版本保存在历史记录里
	Attachments datatypes.JSONSlice[string] `json:"attachments"`

	HeadOfDept ApprovalSlot `gorm:"embedded;embeddedPrefix:head_of_dept_" json:"head_of_dept"`
	Manager    ApprovalSlot `gorm:"embedded;embeddedPrefix:manager_" json:"manager"`

	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`
	RejectedBy      string     `gorm:"type:varchar(64)" json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	SubmittedAt     *time.Time `gorm:"index" json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`

	Notes   string `gorm:"type:text" json:"notes,omitempty"`
	Version int    `gorm:"not null;default:1" json:"version"` // 乐观锁版本号

	CreatedAt time.Time `gorm:"not null;index" json:"created"`
	UpdatedAt time.Time `gorm:"not null" json:"updated"`
}

// TableName 指定表名
func (PurchaseRequestModel) TableName() string {
	return "purchase_requests"
}

// EffectiveType 返回申请类型, 旧数据没有类型时按 project 处理
func (pr *PurchaseRequestModel) EffectiveType() string {
	if pr.Type == "" {
		return RequestTypeProject
	}
	return pr.Type
}

// ClearApprovals 清除两个层级的审批证据
func (pr *PurchaseRequestModel) ClearApprovals() {
	pr.HeadOfDept = ApprovalSlot{}
	pr.Manager = ApprovalSlot{}
	pr.ApprovedAt = nil
}

// Validate 验证采购申请模型
func (pr *PurchaseRequestModel) Validate() error {
	if pr.ID == "" {
		return errors.New("purchase request ID is required")
	}
	if pr.RequestNumber == "" {
		return errors.New("request number is required")
	}
	if pr.RequesterID == "" {
		return errors.New("requester is required")
	}
	switch pr.Status {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
	default:
		return errors.New("invalid status")
	}
	switch pr.EffectiveType() {
	case RequestTypeProject, RequestTypeSub, RequestTypeOther:
	default:
		return errors.New("invalid request type")
	}
	if pr.ApprovalLevel != LevelHeadOfDept && pr.ApprovalLevel != LevelManager {
		return errors.New("approval level must be 0 or 1")
	}
	return nil
}
