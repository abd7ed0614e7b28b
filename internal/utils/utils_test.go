package utils_test

import (
	"testing"

	"github.com/mautops/procurement-gin/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateID 测试 ID 格式验证
func TestValidateID(t *testing.T) {
	assert.NoError(t, utils.ValidateID("pr-001_a"))
	assert.ErrorIs(t, utils.ValidateID(""), utils.ErrEmptyID)
	assert.ErrorIs(t, utils.ValidateID("pr 001"), utils.ErrInvalidIDFormat)
	assert.ErrorIs(t, utils.ValidateID("1' OR '1'='1"), utils.ErrInvalidIDFormat)
}

// TestValidateFilename 测试文件名不能包含路径
func TestValidateFilename(t *testing.T) {
	assert.NoError(t, utils.ValidateFilename("quote_v2.pdf"))
	assert.Error(t, utils.ValidateFilename("../etc/passwd"))
	assert.Error(t, utils.ValidateFilename("a/b.pdf"))
	assert.Error(t, utils.ValidateFilename(".."))
	assert.Error(t, utils.ValidateFilename(" "))
}

// TestValidateSortField 测试排序字段白名单
func TestValidateSortField(t *testing.T) {
	assert.NoError(t, utils.ValidateSortField("created_at"))
	assert.NoError(t, utils.ValidateSortField("TOTAL_AMOUNT"))
	assert.Error(t, utils.ValidateSortField("created_at; DROP TABLE users"))
	assert.Error(t, utils.ValidateSortField(""))
	assert.Equal(t, "asc", utils.SanitizeSortOrder(" ASC "))
	assert.Equal(t, "desc", utils.SanitizeSortOrder("sideways"))
}

// TestPassword 测试密码哈希和验证
func TestPassword(t *testing.T) {
	_, err := utils.HashPassword("short")
	assert.ErrorIs(t, err, utils.ErrPasswordTooShort)

	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword("correct-horse", hash))
	assert.False(t, utils.VerifyPassword("wrong-horse", hash))
	assert.False(t, utils.VerifyPassword("correct-horse", ""))
}

// TestTrimAndValidate 测试字符串清理
func TestTrimAndValidate(t *testing.T) {
	out, err := utils.TrimAndValidate("  <b>Cable</b> ", 100)
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;Cable&lt;/b&gt;", out)

	_, err = utils.TrimAndValidate("   ", 10)
	assert.ErrorIs(t, err, utils.ErrEmptyString)
}
