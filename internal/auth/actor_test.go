package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/auth"
	"github.com/mautops/procurement-gin/internal/database"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestRoleFromRealm(t *testing.T) {
	assert.Equal(t, model.RoleUser, auth.RoleFromRealm(nil))
	assert.Equal(t, model.RoleManager, auth.RoleFromRealm([]string{"offline_access", "head_of_dept", "manager"}))
	assert.Equal(t, model.RoleSuperadmin, auth.RoleFromRealm([]string{"superadmin", "purchasing"}))
}

func TestActorResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := repository.NewUserRepository(db)
	resolver := auth.NewActorResolver(users, nil)

	claims := &auth.KeycloakClaims{Sub: "kc-1", PreferredUsername: "ploy", Name: "Ploy"}
	claims.RealmAccess.Roles = []string{"head_of_dept"}

	// 首次登录自动创建用户
	u, err := resolver.Resolve(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, "kc-1", u.ID)
	assert.Equal(t, model.RoleHeadOfDept, u.Role)

	// 数据库中的角色优先
	u.Role = model.RoleManager
	require.NoError(t, users.Save(ctx, u))
	u, err = resolver.Resolve(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, u.Role)

	// 按用户名匹配已有用户
	now := time.Now()
	require.NoError(t, users.Save(ctx, &model.UserModel{ID: "local-1", Username: "nok", Role: model.RolePurchasing, CreatedAt: now, UpdatedAt: now}))
	u, err = resolver.Resolve(ctx, &auth.KeycloakClaims{Sub: "kc-2", PreferredUsername: "nok"})
	require.NoError(t, err)
	assert.Equal(t, "local-1", u.ID)
}

func TestBasicAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db := setupTestDB(t)
	users := service.NewUserService(repository.NewUserRepository(db), nil, nil, nil)
	_, err := users.CreateUser(ctx, &service.CreateUserRequest{Username: "admin", Role: model.RoleSuperadmin, Password: "admin-pass"})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", auth.BasicAuthMiddleware(users), func(c *gin.Context) {
		actor, ok := auth.ActorFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, actor.Role)
	})

	tests := []struct {
		name     string
		user     string
		password string
		want     int
	}{
		{"valid", "admin", "admin-pass", http.StatusOK},
		{"wrong password", "admin", "nope-nope", http.StatusUnauthorized},
		{"unknown user", "ghost", "admin-pass", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.SetBasicAuth(tt.user, tt.password)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
