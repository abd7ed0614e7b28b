package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mautops/procurement-gin/internal/metrics"
)

// RelationClient 关系读写接口
type RelationClient interface {
	CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error)
	SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error
	DeleteRelation(ctx context.Context, userID, relation, objectType, objectID string) error
}

// PermissionCache 权限检查结果缓存, 键为 对象:关系:用户
type PermissionCache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	allowed   bool
	expiresAt time.Time
}

// NewPermissionCache 创建权限缓存
func NewPermissionCache(ttl time.Duration) *PermissionCache {
	return &PermissionCache{ttl: ttl, now: time.Now}
}

// Get 获取未过期的缓存结果
func (c *PermissionCache) Get(key string) (bool, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return false, false
	}
	entry := v.(cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.entries.Delete(key)
		return false, false
	}
	return entry.allowed, true
}

// Set 写入缓存
func (c *PermissionCache) Set(key string, allowed bool) {
	c.entries.Store(key, cacheEntry{allowed: allowed, expiresAt: c.now().Add(c.ttl)})
}

// Delete 删除单个键
func (c *PermissionCache) Delete(key string) {
	c.entries.Delete(key)
}

// DeleteObject 删除某个对象的全部缓存, 申请删除或关系变化时使用
func (c *PermissionCache) DeleteObject(objectType, objectID string) {
	prefix := objectType + ":" + objectID + ":"
	c.entries.Range(func(k, _ interface{}) bool {
		if strings.HasPrefix(k.(string), prefix) {
			c.entries.Delete(k)
		}
		return true
	})
}

// Clear 清空缓存
func (c *PermissionCache) Clear() {
	c.entries.Range(func(k, _ interface{}) bool {
		c.entries.Delete(k)
		return true
	})
}

func cacheKey(userID, relation, objectType, objectID string) string {
	return objectType + ":" + objectID + ":" + relation + ":" + userID
}

// CachedOpenFGAClient 带缓存的关系客户端, 实现 service.Authorizer
type CachedOpenFGAClient struct {
	client RelationClient
	cache  *PermissionCache
}

// NewCachedOpenFGAClient 创建带缓存的客户端
func NewCachedOpenFGAClient(client RelationClient, cache *PermissionCache) *CachedOpenFGAClient {
	return &CachedOpenFGAClient{client: client, cache: cache}
}

// CheckPermission 先查缓存, 未命中时查询 OpenFGA, 查询失败不缓存
func (c *CachedOpenFGAClient) CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error) {
	key := cacheKey(userID, relation, objectType, objectID)
	if allowed, ok := c.cache.Get(key); ok {
		metrics.RecordPermissionCheck("hit")
		return allowed, nil
	}

	allowed, err := c.client.CheckPermission(ctx, userID, relation, objectType, objectID)
	if err != nil {
		metrics.RecordPermissionCheck("error")
		return false, err
	}
	metrics.RecordPermissionCheck("miss")
	c.cache.Set(key, allowed)
	return allowed, nil
}

// SetRelation 写入关系后使该对象的缓存失效
func (c *CachedOpenFGAClient) SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	if err := c.client.SetRelation(ctx, userID, relation, objectType, objectID); err != nil {
		return err
	}
	c.cache.DeleteObject(objectType, objectID)
	return nil
}

// DeleteRelation 删除关系后使该对象的缓存失效
func (c *CachedOpenFGAClient) DeleteRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	if err := c.client.DeleteRelation(ctx, userID, relation, objectType, objectID); err != nil {
		return err
	}
	c.cache.DeleteObject(objectType, objectID)
	return nil
}
