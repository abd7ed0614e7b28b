package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 事件投递状态
const (
	EventStatusPending = "pending"
	EventStatusSuccess = "success"
	EventStatusFailed  = "failed"
)

// EventModel 已发布的领域事件
type EventModel struct {
	ID         string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Type       string         `gorm:"type:varchar(64);not null;index" json:"type"`
	ResourceID string         `gorm:"type:varchar(64);index" json:"resource_id,omitempty"`
	Data       datatypes.JSON `gorm:"not null" json:"data"`
	Status     string         `gorm:"type:varchar(32);not null;default:'pending'" json:"status"`
	RetryCount int            `gorm:"default:0" json:"retry_count"`
	LastError  string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated"`
}

// TableName 指定表名
func (EventModel) TableName() string {
	return "events"
}

// Validate 验证事件模型
func (em *EventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	if len(em.Data) == 0 {
		return errors.New("event data is required")
	}
	if em.Status == "" {
		em.Status = EventStatusPending
	}
	return nil
}
