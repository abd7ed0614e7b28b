package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/mautops/procurement-gin/internal/utils"
)

// maxSignatureSize 签名图片大小上限
const maxSignatureSize = 2 << 20

// UserController 当前用户控制器
type UserController struct {
	userService service.UserService
}

// NewUserController 创建用户控制器
func NewUserController(userService service.UserService) *UserController {
	return &UserController{userService: userService}
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Me 获取当前用户
// @Summary      获取当前用户
// @Tags         用户
// @Produce      json
// @Success      200  {object}  Response
// @Failure      401  {object}  ErrorResponse
// @Router       /users/me [get]
// @Security     BearerAuth
func (c *UserController) Me(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	u, err := c.userService.Me(ctx.Request.Context(), actor)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, u)
}

// UploadSignature 上传个人签名
// @Summary      上传个人签名
// @Description  审批前必须上传签名, 审批时会复制到采购申请上
// @Tags         用户
// @Accept       mpfd
// @Produce      json
// @Param        signature formData file true "签名图片"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /users/me/signature [post]
// @Security     BearerAuth
func (c *UserController) UploadSignature(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	fh, err := ctx.FormFile("signature")
	if err != nil {
		BadRequest(ctx, err)
		return
	}
	if fh.Size > maxSignatureSize {
		BadRequest(ctx, errors.New("signature image is too large"))
		return
	}
	if err := utils.ValidateFilename(fh.Filename); err != nil {
		BadRequest(ctx, err)
		return
	}
	file, err := fh.Open()
	if err != nil {
		BadRequest(ctx, err)
		return
	}
	defer file.Close()

	u, err := c.userService.UploadSignature(ctx.Request.Context(), actor, fh.Filename, file)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}
	Success(ctx, u)
}

// ChangePassword 修改密码
// @Summary      修改密码
// @Description  需要验证当前密码
// @Tags         用户
// @Accept       json
// @Produce      json
// @Param        request body ChangePasswordRequest true "密码"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /users/me/password [put]
// @Security     BearerAuth
func (c *UserController) ChangePassword(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		BadRequest(ctx, err)
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		BadRequest(ctx, errors.New("old_password and new_password are required"))
		return
	}

	if err := c.userService.ChangePassword(ctx.Request.Context(), actor, req.OldPassword, req.NewPassword); err != nil {
		HandleServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, Response{Code: 0, Message: "success"})
}
