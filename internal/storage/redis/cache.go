package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mailalias/backend/internal/domain"
	"mailalias/backend/internal/storage"
)

// Cache Redis 别名缓存实现。
// 主要加速投递服务按地址解析别名的热路径，写路径负责失效。
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// CacheAlias 缓存别名信息，同时写入 ID 和地址两个索引键。
func (c *Cache) CacheAlias(alias *domain.EmailAlias, ttl time.Duration) error {
	data, err := json.Marshal(alias)
	if err != nil {
		return err
	}

	pipe := c.client.Pipeline()
	pipe.Set(c.ctx, aliasKey(alias.ID), data, ttl)
	pipe.Set(c.ctx, sourceKey(alias.SourceEmail), data, ttl)
	_, err = pipe.Exec(c.ctx)
	return err
}

// GetCachedAlias 按 ID 获取缓存的别名。
func (c *Cache) GetCachedAlias(id string) (*domain.EmailAlias, error) {
	return c.get(aliasKey(id))
}

// GetCachedAliasBySourceEmail 按别名地址获取缓存的别名。
func (c *Cache) GetCachedAliasBySourceEmail(address string) (*domain.EmailAlias, error) {
	return c.get(sourceKey(address))
}

// InvalidateAlias 删除别名的全部缓存键。
func (c *Cache) InvalidateAlias(alias *domain.EmailAlias) error {
	return c.client.Del(c.ctx, aliasKey(alias.ID), sourceKey(alias.SourceEmail)).Err()
}

// Close 关闭 Redis 连接。
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping 测试 Redis 连接。
func (c *Cache) Ping() error {
	return c.client.Ping(c.ctx).Err()
}

func (c *Cache) get(key string) (*domain.EmailAlias, error) {
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrAliasNotFound
		}
		return nil, err
	}

	var alias domain.EmailAlias
	if err := json.Unmarshal([]byte(data), &alias); err != nil {
		return nil, err
	}
	return &alias, nil
}

func aliasKey(id string) string {
	return fmt.Sprintf("alias:%s", id)
}

func sourceKey(address string) string {
	return fmt.Sprintf("alias:source:%s", strings.ToLower(address))
}
