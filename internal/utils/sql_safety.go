package utils

import (
	"errors"
	"strings"
)

// requestSortFields 采购申请列表允许的排序字段
var requestSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"submitted_at":   true,
	"request_number": true,
	"total_amount":   true,
	"status":         true,
	"approval_level": true,
}

// ValidateSortField 验证排序字段，只接受白名单中的列名
func ValidateSortField(field string) error {
	if field == "" {
		return errors.New("sort field cannot be empty")
	}
	if !requestSortFields[strings.ToLower(field)] {
		return errors.New("invalid sort field")
	}
	return nil
}

// SanitizeSortOrder 清理排序方向, 无效值返回 desc
func SanitizeSortOrder(order string) string {
	if strings.EqualFold(strings.TrimSpace(order), "asc") {
		return "asc"
	}
	return "desc"
}
