package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// rolePrecedence realm 角色映射时的优先顺序
var rolePrecedence = []string{
	model.RoleSuperadmin,
	model.RoleManager,
	model.RoleHeadOfDept,
	model.RolePurchasing,
}

// RoleFromRealm 从 Keycloak realm 角色中选出业务角色
func RoleFromRealm(roles []string) string {
	set := make(map[string]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	for _, r := range rolePrecedence {
		if set[r] {
			return r
		}
	}
	return model.RoleUser
}

// ActorResolver 根据 token 声明解析系统用户
type ActorResolver struct {
	users repository.UserRepository
	log   logrus.FieldLogger
}

// NewActorResolver 创建用户解析器
func NewActorResolver(users repository.UserRepository, log logrus.FieldLogger) *ActorResolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ActorResolver{users: users, log: log}
}

// Resolve 按 sub 查找用户, 不存在时按用户名查找, 仍不存在则创建
// 角色以数据库记录为准
func (r *ActorResolver) Resolve(ctx context.Context, claims *KeycloakClaims) (*model.UserModel, error) {
	u, err := r.users.FindByID(ctx, claims.Sub)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if claims.PreferredUsername != "" {
		u, err = r.users.FindByUsername(ctx, claims.PreferredUsername)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Sub
	}
	now := time.Now()
	u = &model.UserModel{
		ID:        claims.Sub,
		Username:  username,
		Name:      claims.Name,
		Email:     claims.Email,
		Role:      RoleFromRealm(claims.RealmAccess.Roles),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := r.users.Save(ctx, u); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("provisioned user from token")
	return u, nil
}

// Middleware 把 token 声明解析为 service.Actor 放入上下文
func (r *ActorResolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ContextClaims)
		claims, _ := v.(*KeycloakClaims)
		if !ok || claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "unauthorized"})
			return
		}
		u, err := r.Resolve(c.Request.Context(), claims)
		if err != nil {
			r.log.WithError(err).WithField("sub", claims.Sub).Error("failed to resolve user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "failed to resolve user"})
			return
		}
		c.Set(ContextActor, service.ActorFromUser(u))
		c.Next()
	}
}

// BasicAuthMiddleware 未配置 Keycloak 时使用用户名密码认证
func BasicAuthMiddleware(users service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="procurement"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "missing credentials"})
			return
		}
		u, err := users.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			status := http.StatusUnauthorized
			if service.KindOf(err) == service.KindStore {
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{"code": status, "message": "authentication failed"})
			return
		}
		c.Set("user_id", u.ID)
		c.Set(ContextActor, service.ActorFromUser(u))
		c.Next()
	}
}

// ActorFrom 从上下文获取当前用户
func ActorFrom(c *gin.Context) (service.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	return actor, ok
}
