package service

import (
	"errors"
	"fmt"

	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/storage"
	"github.com/mautops/procurement-gin/internal/workflow"
	"gorm.io/gorm"
)

// ErrorKind 错误类别
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindStore         ErrorKind = "store"
)

// 错误码, 同时作为 i18n 键
const (
	CodeInvalidInput      = "invalid_input"
	CodeNoValidItems      = "no_valid_items"
	CodeVendorRequired    = "vendor_required"
	CodeProjectRequired   = "project_required"
	CodeSignatureRequired = "signature_required"
	CodeNotAuthorized     = "not_authorized_at_level"
	CodeNotOwner          = "not_owner"
	CodeInvalidTransition = "invalid_transition"
	CodeVersionConflict   = "version_conflict"
	CodeNoChanges         = "no_changes"
	CodeNotFound          = "not_found"
	CodeStoreFailure      = "store_failure"
	CodeWrongPassword     = "wrong_password"
	CodeVendorNotOnPR     = "vendor_not_on_request"
)

// Error 服务层错误, 调用方通过 Kind 区分处理方式
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidationError 参数校验失败
func ValidationError(code, format string, args ...interface{}) *Error {
	return newError(KindValidation, code, format, args...)
}

// AuthorizationError 没有权限
func AuthorizationError(code, format string, args ...interface{}) *Error {
	return newError(KindAuthorization, code, format, args...)
}

// NotFoundError 记录不存在
func NotFoundError(resource, id string) *Error {
	return newError(KindNotFound, CodeNotFound, "%s %s not found", resource, id)
}

// ConflictError 状态冲突
func ConflictError(code, format string, args ...interface{}) *Error {
	return newError(KindConflict, code, format, args...)
}

// KindOf 返回错误类别, 非服务层错误视为存储错误
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStore
}

// wrapStoreError 把存储层错误转换为服务层错误
func wrapStoreError(resource, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	var te *workflow.TransitionError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, storage.ErrNotFound):
		return NotFoundError(resource, id)
	case errors.Is(err, repository.ErrVersionConflict):
		return &Error{Kind: KindConflict, Code: CodeVersionConflict,
			Message: fmt.Sprintf("%s %s was modified by another request", resource, id), Err: err}
	case errors.As(err, &te):
		return &Error{Kind: KindConflict, Code: CodeInvalidTransition, Message: te.Error(), Err: err}
	}
	return &Error{Kind: KindStore, Code: CodeStoreFailure, Message: fmt.Sprintf("failed to access %s", resource), Err: err}
}

// SoftFailure 尽力而为的副作用失败, 不中断主流程
type SoftFailure struct {
	Step string `json:"step"`
	Err  error  `json:"-"`
}

func (f *SoftFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Step, f.Err)
}

// SideEffect 副作用结果, Soft 非空时 Value 为零值
type SideEffect[T any] struct {
	Value T
	Soft  *SoftFailure
}

// OK 副作用是否成功
func (s SideEffect[T]) OK() bool {
	return s.Soft == nil
}

func succeeded[T any](v T) SideEffect[T] {
	return SideEffect[T]{Value: v}
}

func softFailed[T any](step string, err error) SideEffect[T] {
	return SideEffect[T]{Soft: &SoftFailure{Step: step, Err: err}}
}
