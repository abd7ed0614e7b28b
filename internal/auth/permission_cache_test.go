package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/procurement-gin/internal/auth"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelations 内存关系存储
type fakeRelations struct {
	tuples map[string]bool
	checks int
}

func (f *fakeRelations) key(userID, relation, objectType, objectID string) string {
	return userID + "|" + relation + "|" + objectType + "|" + objectID
}

func (f *fakeRelations) CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error) {
	f.checks++
	return f.tuples[f.key(userID, relation, objectType, objectID)], nil
}

func (f *fakeRelations) SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	f.tuples[f.key(userID, relation, objectType, objectID)] = true
	return nil
}

func (f *fakeRelations) DeleteRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	delete(f.tuples, f.key(userID, relation, objectType, objectID))
	return nil
}

func TestPermissionCache_Expiry(t *testing.T) {
	cache := auth.NewPermissionCache(20 * time.Millisecond)
	cache.Set("k", true)

	v, ok := cache.Get("k")
	assert.True(t, ok)
	assert.True(t, v)

	time.Sleep(40 * time.Millisecond)
	_, ok = cache.Get("k")
	assert.False(t, ok)

	cache.Set("a", false)
	cache.Clear()
	_, ok = cache.Get("a")
	assert.False(t, ok)
}

func TestCachedOpenFGAClient(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRelations{tuples: map[string]bool{}}
	var authz service.Authorizer = auth.NewCachedOpenFGAClient(fake, auth.NewPermissionCache(time.Minute))

	ok, err := authz.CheckPermission(ctx, "u1", "operator", service.FGAObjectPurchaseRequest, "pr-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// 写入关系后缓存失效
	require.NoError(t, authz.SetRelation(ctx, "u1", "operator", service.FGAObjectPurchaseRequest, "pr-1"))
	ok, err = authz.CheckPermission(ctx, "u1", "operator", service.FGAObjectPurchaseRequest, "pr-1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = authz.CheckPermission(ctx, "u1", "operator", service.FGAObjectPurchaseRequest, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.checks)
}

func TestCachedOpenFGAClient_DeleteInvalidatesObject(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRelations{tuples: map[string]bool{}}
	cache := auth.NewPermissionCache(time.Minute)
	client := auth.NewCachedOpenFGAClient(fake, cache)

	require.NoError(t, client.SetRelation(ctx, "u1", "operator", service.FGAObjectPurchaseRequest, "pr-1"))
	require.NoError(t, client.SetRelation(ctx, "u2", "operator", service.FGAObjectPurchaseRequest, "pr-2"))
	for _, id := range []string{"pr-1", "pr-2"} {
		_, err := client.CheckPermission(ctx, "u1", "operator", service.FGAObjectPurchaseRequest, id)
		require.NoError(t, err)
	}

	// 只清除 pr-1 的缓存
	require.NoError(t, client.DeleteRelation(ctx, "u1", "operator", service.FGAObjectPurchaseRequest, "pr-1"))
	_, ok := cache.Get("purchase_request:pr-2:operator:u1")
	assert.True(t, ok)

	allowed, err := client.CheckPermission(ctx, "u1", "operator", service.FGAObjectPurchaseRequest, "pr-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 3, fake.checks)
}

func TestGetPermissionModel(t *testing.T) {
	m := auth.GetPermissionModel()
	assert.Contains(t, m, "type "+service.FGAObjectPurchaseRequest)
	assert.Contains(t, m, "define operator")
}
