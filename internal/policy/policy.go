// Package policy 审批权限规则, 只依赖角色和审批层级
package policy

import "github.com/mautops/procurement-gin/internal/model"

// approvers 每个审批层级允许审批的角色
var approvers = map[int]map[string]bool{
	model.LevelHeadOfDept: {model.RoleHeadOfDept: true, model.RoleSuperadmin: true},
	model.LevelManager:    {model.RoleManager: true, model.RoleSuperadmin: true},
}

// CanApprove 角色是否可以审批处于 level 层级的申请
func CanApprove(role string, level int) bool {
	return approvers[level][role]
}

// CanReject 驳回权限与当前层级的审批权限相同
func CanReject(role string, level int) bool {
	return CanApprove(role, level)
}

// CanAct 角色是否可以处理该申请
func CanAct(role string, pr *model.PurchaseRequestModel) bool {
	if pr == nil || pr.Status != model.StatusPending {
		return false
	}
	return CanApprove(role, pr.ApprovalLevel)
}

// NextLevel 审批后的层级, final 为 true 表示审批完成
func NextLevel(level int) (next int, final bool) {
	switch level {
	case model.LevelHeadOfDept:
		return model.LevelManager, false
	default:
		return level, true
	}
}

// LevelsFor 角色可以审批的层级
func LevelsFor(role string) []int {
	levels := make([]int, 0, 2)
	for _, level := range []int{model.LevelHeadOfDept, model.LevelManager} {
		if CanApprove(role, level) {
			levels = append(levels, level)
		}
	}
	return levels
}

// Icon 状态图标类型
type Icon string

const (
	IconClock  Icon = "clock"
	IconUser   Icon = "user-check"
	IconCheck  Icon = "check-circle"
	IconDraft  Icon = "file"
	IconReject Icon = "x-circle"
)

// Label 状态标签, Key 为 i18n 键, Text 由接口层按请求语言填充
type Label struct {
	Key  string `json:"key"`
	Icon Icon   `json:"icon"`
	Text string `json:"text,omitempty"`
}

var levelLabels = map[int]Label{
	model.LevelHeadOfDept: {Key: "status.awaiting_head_of_dept", Icon: IconClock},
	model.LevelManager:    {Key: "status.awaiting_manager", Icon: IconUser},
}

var fullyApproved = Label{Key: "status.fully_approved", Icon: IconCheck}

// LevelLabel 按审批层级查表, 未知层级视为审批完成
func LevelLabel(level int) Label {
	if l, ok := levelLabels[level]; ok {
		return l
	}
	return fullyApproved
}

// StatusLabel 申请的显示标签
func StatusLabel(pr *model.PurchaseRequestModel) Label {
	switch pr.Status {
	case model.StatusDraft:
		return Label{Key: "status.draft", Icon: IconDraft}
	case model.StatusRejected:
		return Label{Key: "status.rejected", Icon: IconReject}
	case model.StatusApproved:
		return fullyApproved
	}
	return LevelLabel(pr.ApprovalLevel)
}
