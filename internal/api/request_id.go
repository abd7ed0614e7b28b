package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/service"
)

const (
	// HeaderRequestID 请求 ID 头
	HeaderRequestID = "X-Request-ID"
	// ContextRequestID 请求 ID 在 gin 上下文中的键
	ContextRequestID = "request_id"
)

// RequestIDMiddleware 请求 ID 中间件, 沿用客户端传入的 ID, 没有时生成
// 请求 ID、客户端 IP 和 User Agent 同时放入请求 context 供审计日志使用
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}

		c.Set(ContextRequestID, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(
			service.WithRequestMeta(c.Request.Context(), requestID, c.ClientIP(), c.Request.UserAgent()),
		)

		c.Next()
	}
}
