package service

import (
	"context"

	"github.com/mautops/procurement-gin/internal/model"
)

// Actor 执行操作的用户, 由调用方显式传入
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ActorFromUser 根据用户记录构造 Actor
func ActorFromUser(u *model.UserModel) Actor {
	return Actor{ID: u.ID, Name: u.DisplayName(), Role: u.Role}
}

// IsSuperadmin 是否为超级管理员
func (a Actor) IsSuperadmin() bool {
	return a.Role == model.RoleSuperadmin
}

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxClientIP  ctxKey = "ip"
	ctxUserAgent ctxKey = "user_agent"
)

// WithRequestMeta 把请求元信息放入 context, 用于审计日志
func WithRequestMeta(ctx context.Context, requestID, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxRequestID, requestID)
	ctx = context.WithValue(ctx, ctxClientIP, ip)
	return context.WithValue(ctx, ctxUserAgent, userAgent)
}

func ctxString(ctx context.Context, key ctxKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetRequestID 从 context 获取请求 ID
func GetRequestID(ctx context.Context) string {
	return ctxString(ctx, ctxRequestID)
}

// GetClientIP 从 context 获取客户端 IP
func GetClientIP(ctx context.Context) string {
	return ctxString(ctx, ctxClientIP)
}

// GetUserAgent 从 context 获取 User Agent
func GetUserAgent(ctx context.Context) string {
	return ctxString(ctx, ctxUserAgent)
}

// EventPublisher 领域事件发布接口, 发布是异步的
type EventPublisher interface {
	Publish(ctx context.Context, eventType, resourceID string, data interface{})
}

// Authorizer 细粒度权限接口, 由 OpenFGA 实现
type Authorizer interface {
	CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error)
	SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error
	DeleteRelation(ctx context.Context, userID, relation, objectType, objectID string) error
}

// 领域事件类型
const (
	EventBadgeCountsChanged = "badge_counts_changed"
)
