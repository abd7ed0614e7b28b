package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/storage"
	"github.com/mautops/procurement-gin/internal/utils"
)

// FileController 附件下载控制器
type FileController struct {
	store storage.BlobStore
}

// NewFileController 创建附件下载控制器
func NewFileController(store storage.BlobStore) *FileController {
	return &FileController{store: store}
}

// Download 下载附件或签名
// @Summary      下载附件
// @Tags         文件
// @Produce      octet-stream
// @Param        collection path string true "集合"
// @Param        recordId   path string true "记录 ID"
// @Param        filename   path string true "文件名"
// @Success      200
// @Failure      404  {object}  ErrorResponse
// @Router       /files/{collection}/{recordId}/{filename} [get]
// @Security     BearerAuth
func (c *FileController) Download(ctx *gin.Context) {
	collection := ctx.Param("collection")
	recordID := ctx.Param("recordId")
	filename := ctx.Param("filename")
	if err := utils.ValidateID(recordID); err != nil {
		BadRequest(ctx, err)
		return
	}
	if err := utils.ValidateFilename(filename); err != nil {
		BadRequest(ctx, err)
		return
	}

	rc, err := c.store.Open(ctx.Request.Context(), collection, recordID, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			Error(ctx, http.StatusNotFound, T(ctx, "error.not_found"), "")
			return
		}
		BadRequest(ctx, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.Header("Content-Type", contentType)
	ctx.Header("X-Content-Type-Options", "nosniff")
	ctx.Status(http.StatusOK)
	if _, err := io.Copy(ctx.Writer, rc); err != nil {
		_ = ctx.Error(err)
	}
}
