package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/logger"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/sirupsen/logrus"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件, 处理处理器通过 c.Error 记录的错误
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			return
		}
		HandleServiceError(c, err)
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// statusForKind 服务层错误类别对应的 HTTP 状态码
func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuthorization:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// HandleServiceError 把服务层错误写成统一错误响应
// 存储错误只记录日志, 不把内部错误返回给调用方
func HandleServiceError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := statusForKind(kind)

	code := service.CodeStoreFailure
	detail := ""
	var se *service.Error
	if errors.As(err, &se) {
		code = se.Code
		if kind != service.KindStore {
			detail = se.Message
		}
	}

	if kind == service.KindStore {
		logger.Get().WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString(ContextRequestID),
			"path":       c.Request.URL.Path,
		}).Error("request failed")
	}

	c.JSON(status, ErrorResponse{
		Code:      status,
		Message:   T(c, "error."+code),
		Reason:    code,
		Detail:    detail,
		RequestID: c.GetString(ContextRequestID),
	})
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:      http.StatusBadRequest,
		Message:   T(c, "error.bad_request"),
		Reason:    service.CodeInvalidInput,
		Detail:    err.Error(),
		RequestID: c.GetString(ContextRequestID),
	})
}
