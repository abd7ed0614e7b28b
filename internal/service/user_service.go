package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/storage"
	"github.com/mautops/procurement-gin/internal/utils"
	"github.com/sirupsen/logrus"
)

// UserService 用户服务接口
type UserService interface {
	Me(ctx context.Context, actor Actor) (*model.UserModel, error)
	// UploadSignature 保存个人签名, 旧签名文件尽力删除
	UploadSignature(ctx context.Context, actor Actor, filename string, content io.Reader) (*model.UserModel, error)
	// ChangePassword 先验证旧密码再保存新密码
	ChangePassword(ctx context.Context, actor Actor, oldPassword, newPassword string) error
	CreateUser(ctx context.Context, req *CreateUserRequest) (*model.UserModel, error)
	Authenticate(ctx context.Context, username, password string) (*model.UserModel, error)
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Username string
	Name     string
	Email    string
	Role     string
	Password string
}

// userService 用户服务实现
type userService struct {
	userRepo    repository.UserRepository
	store       storage.BlobStore
	auditLogSvc AuditLogService
	log         logrus.FieldLogger
}

// NewUserService 创建用户服务
func NewUserService(userRepo repository.UserRepository, store storage.BlobStore, auditLogSvc AuditLogService, log logrus.FieldLogger) UserService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &userService{userRepo: userRepo, store: store, auditLogSvc: auditLogSvc, log: log}
}

// Me 当前用户
func (s *userService) Me(ctx context.Context, actor Actor) (*model.UserModel, error) {
	u, err := s.userRepo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, wrapStoreError("user", actor.ID, err)
	}
	return u, nil
}

// UploadSignature 上传个人签名
func (s *userService) UploadSignature(ctx context.Context, actor Actor, filename string, content io.Reader) (*model.UserModel, error) {
	if s.store == nil {
		return nil, &Error{Kind: KindStore, Code: CodeStoreFailure, Message: "attachment storage is not configured"}
	}
	u, err := s.userRepo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, wrapStoreError("user", actor.ID, err)
	}

	name, err := s.store.Put(ctx, CollectionUsers, u.ID, filename, content)
	if err != nil {
		return nil, &Error{Kind: KindStore, Code: CodeStoreFailure, Message: "failed to store signature", Err: err}
	}

	old := u.Signature
	u.Signature = name
	u.UpdatedAt = time.Now()
	if err := s.userRepo.Save(ctx, u); err != nil {
		_ = s.store.Delete(ctx, CollectionUsers, u.ID, name)
		return nil, wrapStoreError("user", u.ID, err)
	}

	// 已审批的申请保存的是签名副本, 删除旧文件不影响历史单据
	if old != "" {
		if err := s.store.Delete(ctx, CollectionUsers, u.ID, old); err != nil {
			s.log.WithError(err).WithField("user_id", u.ID).Warn("failed to delete previous signature")
		}
	}
	if s.auditLogSvc != nil {
		_ = s.auditLogSvc.RecordAction(ctx, actor.ID, "upload-signature", model.ResourceUser, u.ID, map[string]string{"signature": name})
	}
	return u, nil
}

// ChangePassword 修改密码
func (s *userService) ChangePassword(ctx context.Context, actor Actor, oldPassword, newPassword string) error {
	u, err := s.userRepo.FindByID(ctx, actor.ID)
	if err != nil {
		return wrapStoreError("user", actor.ID, err)
	}
	if !utils.VerifyPassword(oldPassword, u.PasswordHash) {
		return ValidationError(CodeWrongPassword, "current password is incorrect")
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return ValidationError(CodeInvalidInput, "%s", err.Error())
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now()
	if err := s.userRepo.Save(ctx, u); err != nil {
		return wrapStoreError("user", u.ID, err)
	}
	if s.auditLogSvc != nil {
		_ = s.auditLogSvc.RecordAction(ctx, actor.ID, "change-password", model.ResourceUser, u.ID, map[string]string{})
	}
	return nil
}

// CreateUser 创建用户
func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest) (*model.UserModel, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, ValidationError(CodeInvalidInput, "username is required")
	}
	if _, err := s.userRepo.FindByUsername(ctx, username); err == nil {
		return nil, ConflictError(CodeInvalidInput, "username %s already exists", username)
	} else if KindOf(wrapStoreError("user", username, err)) != KindNotFound {
		return nil, wrapStoreError("user", username, err)
	}

	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	now := time.Now()
	u := &model.UserModel{
		ID:        uuid.New().String(),
		Username:  username,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Password != "" {
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return nil, ValidationError(CodeInvalidInput, "%s", err.Error())
		}
		u.PasswordHash = hash
	}
	if err := u.Validate(); err != nil {
		return nil, ValidationError(CodeInvalidInput, "%s", err.Error())
	}
	if err := s.userRepo.Save(ctx, u); err != nil {
		return nil, wrapStoreError("user", u.ID, err)
	}
	return u, nil
}

// Authenticate 用户名密码登录校验
func (s *userService) Authenticate(ctx context.Context, username, password string) (*model.UserModel, error) {
	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if KindOf(wrapStoreError("user", username, err)) == KindNotFound {
			return nil, ValidationError(CodeWrongPassword, "invalid username or password")
		}
		return nil, wrapStoreError("user", username, err)
	}
	if !utils.VerifyPassword(password, u.PasswordHash) {
		return nil, ValidationError(CodeWrongPassword, "invalid username or password")
	}
	return u, nil
}
