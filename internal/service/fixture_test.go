package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/database"
	"github.com/mautops/procurement-gin/internal/model"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/mautops/procurement-gin/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fixture 生命周期测试的公共数据
type fixture struct {
	db        *gorm.DB
	store     *storage.LocalStore
	svc       service.PurchaseRequestService
	publisher *recordingPublisher
	logHook   *test.Hook

	requester service.Actor
	head      service.Actor
	manager   service.Actor
	noSig     service.Actor
	admin     service.Actor

	project   *model.ProjectModel
	stockLine *model.ProjectItemModel
	vendor    *model.VendorModel
}

// recordingPublisher 记录发布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType, resourceID string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType+":"+resourceID)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// failingCopyStore 复制文件总是失败
type failingCopyStore struct {
	storage.BlobStore
}

func (s *failingCopyStore) Copy(ctx context.Context, src storage.Ref, dstCollection, dstRecordID string) (string, error) {
	return "", errors.New("copy unavailable")
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore wrap 不为空时用它包装文件存储
func newFixtureWithStore(t *testing.T, wrap func(storage.BlobStore) storage.BlobStore) *fixture {
	ctx := context.Background()
	db := setupTestDB(t)
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{db: db, store: store, publisher: &recordingPublisher{}, logHook: hook}

	var blob storage.BlobStore = store
	if wrap != nil {
		blob = wrap(store)
	}
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	f.svc = service.NewPurchaseRequestService(db, blob, audit, f.publisher, nil, logger)

	f.requester = f.addUser(t, "somchai", model.RoleUser, false)
	f.head = f.addUser(t, "head", model.RoleHeadOfDept, true)
	f.manager = f.addUser(t, "manager", model.RoleManager, true)
	f.noSig = f.addUser(t, "manager2", model.RoleManager, false)
	f.admin = f.addUser(t, "admin", model.RoleSuperadmin, true)

	now := time.Now()
	f.project = &model.ProjectModel{ID: uuid.New().String(), Code: "P-01", Name: "Tower A", Budget: decimal.NewFromInt(100000), Status: "active", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repository.NewProjectRepository(db).Save(ctx, f.project))

	f.stockLine = &model.ProjectItemModel{
		ID:              uuid.New().String(),
		ProjectID:       f.project.ID,
		Name:            "Cable",
		Unit:            "m",
		UnitPrice:       decimal.NewFromInt(25),
		Quantity:        decimal.NewFromInt(50),
		InitialQuantity: decimal.NewNullDecimal(decimal.NewFromInt(50)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, repository.NewProjectItemRepository(db).Save(ctx, f.stockLine))

	f.vendor = &model.VendorModel{ID: uuid.New().String(), Name: "Siam Supply", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repository.NewVendorRepository(db).Save(ctx, f.vendor))
	return f
}

// addUser 创建用户, withSignature 为 true 时上传签名
func (f *fixture) addUser(t *testing.T, username, role string, withSignature bool) service.Actor {
	ctx := context.Background()
	now := time.Now()
	u := &model.UserModel{ID: uuid.New().String(), Username: username, Name: strings.ToUpper(username), Role: role, CreatedAt: now, UpdatedAt: now}
	if withSignature {
		name, err := f.store.Put(ctx, service.CollectionUsers, u.ID, "signature.png", strings.NewReader("png-bytes"))
		require.NoError(t, err)
		u.Signature = name
	}
	require.NoError(t, repository.NewUserRepository(f.db).Save(ctx, u))
	return service.ActorFromUser(u)
}

func (f *fixture) stockQuantity(t *testing.T) decimal.Decimal {
	item, err := repository.NewProjectItemRepository(f.db).FindByID(context.Background(), f.stockLine.ID)
	require.NoError(t, err)
	return item.Quantity
}

// createSub 创建并提交一个引用库存行的分包申请
func (f *fixture) createSub(t *testing.T, qty int64, extra ...service.ItemInput) *service.RequestDetail {
	ref := f.stockLine.ID
	items := append([]service.ItemInput{{
		Name:          "Cable",
		Unit:          "m",
		Quantity:      decimal.NewFromInt(qty),
		UnitPrice:     decimal.NewFromInt(25),
		ProjectItemID: &ref,
	}}, extra...)
	res, err := f.svc.Create(context.Background(), f.requester, &service.CreateRequest{
		Type:      model.RequestTypeSub,
		ProjectID: &f.project.ID,
		Items:     items,
		Submit:    true,
	})
	require.NoError(t, err)
	return res.Request
}

func historyActions(t *testing.T, db *gorm.DB, requestID string) []string {
	rows, err := repository.NewPRHistoryRepository(db).FindByRequestID(context.Background(), requestID)
	require.NoError(t, err)
	actions := make([]string, 0, len(rows))
	for _, h := range rows {
		actions = append(actions, h.Action)
	}
	return actions
}
