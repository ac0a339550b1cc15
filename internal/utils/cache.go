package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// TTLCache 带过期时间的本地 LRU 缓存
type TTLCache[K comparable, V any] struct {
	lruCache *lru.Cache[K, CacheItem[V]]
	now      func() time.Time
}

// NewTTLCache 创建指定容量的缓存
func NewTTLCache[K comparable, V any](size int) (*TTLCache[K, V], error) {
	l, err := lru.New[K, CacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[K, V]{lruCache: l, now: time.Now}, nil
}

// WithClock 替换时钟，测试用
func (c *TTLCache[K, V]) WithClock(now func() time.Time) *TTLCache[K, V] {
	c.now = now
	return c
}

// Set 设置缓存，TTL 为过期时间
func (c *TTLCache[K, V]) Set(key K, data V, ttl time.Duration) {
	c.lruCache.Add(key, CacheItem[V]{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，不存在或已过期时 ok 为 false
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		var zero V
		return zero, false
	}

	// 检查过期
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		var zero V
		return zero, false
	}

	return val.Data, true
}

// Delete 删除指定缓存
func (c *TTLCache[K, V]) Delete(key K) {
	c.lruCache.Remove(key)
}

// Purge 清空缓存
func (c *TTLCache[K, V]) Purge() {
	c.lruCache.Purge()
}
