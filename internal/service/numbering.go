package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// numberScanner 按前缀列出已有编号
type numberScanner func(ctx context.Context, prefix string) ([]string, error)

// nextNumber 生成 <prefix>-YYYY-MM-DD-N, N 为当天最大序号加一
// 扫描失败时退回时间戳后缀, 不阻塞创建
func nextNumber(ctx context.Context, kind string, now time.Time, scan numberScanner) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", kind, now.Format("2006-01-02"))
	numbers, err := scan(ctx, prefix)
	if err != nil {
		return fmt.Sprintf("%s%d", prefix, now.UnixMilli()), err
	}

	max := 0
	for _, n := range numbers {
		seq, convErr := strconv.Atoi(strings.TrimPrefix(n, prefix))
		if convErr != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return fmt.Sprintf("%s%d", prefix, max+1), nil
}
