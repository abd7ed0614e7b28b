// Package workflow 采购申请状态机
package workflow

import (
	"fmt"

	"github.com/mautops/procurement-gin/internal/model"
)

// State 申请在状态机中的位置
type State string

const (
	StateDraft    State = "draft"
	StatePending0 State = "pending@0"
	StatePending1 State = "pending@1"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

// Action 生命周期动作
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionResubmit Action = "resubmit"
	ActionEdit     Action = "edit"
)

// transitions 允许的状态转换
var transitions = map[State]map[Action]State{
	StateDraft: {
		ActionSubmit: StatePending0,
		ActionEdit:   StateDraft,
	},
	StatePending0: {
		ActionApprove: StatePending1,
		ActionReject:  StateRejected,
	},
	StatePending1: {
		ActionApprove: StateApproved,
		ActionReject:  StateRejected,
	},
	StateRejected: {
		ActionResubmit: StatePending0,
	},
}

// TransitionError 不允许的状态转换
type TransitionError struct {
	From   State
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("action %s is not allowed in state %s", e.Action, e.From)
}

// StateOf 根据状态和层级计算状态机位置
func StateOf(pr *model.PurchaseRequestModel) State {
	switch pr.Status {
	case model.StatusDraft:
		return StateDraft
	case model.StatusApproved:
		return StateApproved
	case model.StatusRejected:
		return StateRejected
	}
	if pr.ApprovalLevel == model.LevelManager {
		return StatePending1
	}
	return StatePending0
}

// Next 计算动作后的状态
func Next(from State, action Action) (State, error) {
	to, ok := transitions[from][action]
	if !ok {
		return from, &TransitionError{From: from, Action: action}
	}
	return to, nil
}

// Apply 把目标状态写回申请的 status 和 approval_level
func Apply(pr *model.PurchaseRequestModel, to State) {
	switch to {
	case StateDraft:
		pr.Status = model.StatusDraft
		pr.ApprovalLevel = model.LevelHeadOfDept
	case StatePending0:
		pr.Status = model.StatusPending
		pr.ApprovalLevel = model.LevelHeadOfDept
	case StatePending1:
		pr.Status = model.StatusPending
		pr.ApprovalLevel = model.LevelManager
	case StateApproved:
		pr.Status = model.StatusApproved
	case StateRejected:
		pr.Status = model.StatusRejected
	}
}

// IsTerminal 是否为终态
func IsTerminal(s State) bool {
	return len(transitions[s]) == 0
}

// Allowed 返回状态下允许的动作
func Allowed(s State) []Action {
	actions := make([]Action, 0, len(transitions[s]))
	for _, a := range []Action{ActionSubmit, ActionEdit, ActionApprove, ActionReject, ActionResubmit} {
		if _, ok := transitions[s][a]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}
