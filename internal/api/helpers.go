package api

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/auth"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/mautops/procurement-gin/internal/utils"
)

// 上传限制
const (
	maxUploadMemory = 32 << 20
	maxUploadFiles  = 20
)

// requireActor 获取当前用户, 没有认证信息时返回 401
func requireActor(ctx *gin.Context) (service.Actor, bool) {
	actor, ok := auth.ActorFrom(ctx)
	if !ok || actor.ID == "" {
		Error(ctx, http.StatusUnauthorized, T(ctx, "error.unauthorized"), "")
		return service.Actor{}, false
	}
	return actor, true
}

// validateID 验证路径中的记录 ID
func validateID(ctx *gin.Context, name string) (string, bool) {
	id := ctx.Param(name)
	if err := utils.ValidateID(id); err != nil {
		BadRequest(ctx, fmt.Errorf("invalid %s: %w", name, err))
		return "", false
	}
	return id, true
}

// queryInt 解析整数查询参数, 缺省时返回 def
func queryInt(ctx *gin.Context, name string, def int) (int, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

// queryString 非空查询参数返回指针
func queryString(ctx *gin.Context, name string) *string {
	v := strings.TrimSpace(ctx.Query(name))
	if v == "" {
		return nil
	}
	return &v
}

func isMultipart(ctx *gin.Context) bool {
	return strings.HasPrefix(ctx.ContentType(), "multipart/form-data")
}

// openedFiles 已打开的上传文件, 处理完请求后关闭
type openedFiles []multipart.File

func (f openedFiles) Close() {
	for _, file := range f {
		_ = file.Close()
	}
}

// bindWithUploads 绑定 JSON 或 multipart 请求
// multipart 请求的 JSON 放在 data 字段, 文件放在 field 字段
func bindWithUploads(ctx *gin.Context, dst interface{}, field string) ([]service.Upload, openedFiles, error) {
	if !isMultipart(ctx) {
		if err := ctx.ShouldBindJSON(dst); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}

	if err := ctx.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	if data := ctx.Request.FormValue("data"); data != "" {
		if err := json.Unmarshal([]byte(data), dst); err != nil {
			return nil, nil, fmt.Errorf("invalid data field: %w", err)
		}
	}

	headers := ctx.Request.MultipartForm.File[field]
	if len(headers) > maxUploadFiles {
		return nil, nil, fmt.Errorf("too many files: %d > %d", len(headers), maxUploadFiles)
	}

	uploads := make([]service.Upload, 0, len(headers))
	opened := make(openedFiles, 0, len(headers))
	for _, fh := range headers {
		if err := utils.ValidateFilename(fh.Filename); err != nil {
			opened.Close()
			return nil, nil, fmt.Errorf("invalid filename %q: %w", fh.Filename, err)
		}
		file, err := fh.Open()
		if err != nil {
			opened.Close()
			return nil, nil, fmt.Errorf("failed to open %q: %w", fh.Filename, err)
		}
		opened = append(opened, file)
		uploads = append(uploads, service.Upload{Filename: fh.Filename, Content: file})
	}
	return uploads, opened, nil
}
