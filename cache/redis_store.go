package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 Redis 存储
// =============================================================================

// RedisConfig Redis 存储配置
type RedisConfig struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		DefaultTTL:   5 * time.Minute,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// RedisStore 基于 Redis 的 Store 实现
type RedisStore struct {
	redis  *redis.Client
	config RedisConfig
	logger *zap.Logger
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(config RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis store initialized",
		zap.String("addr", config.Addr),
		zap.Int("pool_size", config.PoolSize),
	)

	return &RedisStore{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "redis_store")),
	}, nil
}

// Get 获取缓存值
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		s.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set 设置缓存值
func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.config.DefaultTTL
	}

	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// GetOrClaim 原子地获取缓存值或占有计算权
// 占有通过对 <key>:claim 的 SETNX 实现；占有键按 claimTTL 过期，
// 占有者写入值后无需显式释放，等待方只轮询值本身。
func (s *RedisStore) GetOrClaim(ctx context.Context, key string, claimTTL time.Duration) (string, bool, error) {
	val, err := s.redis.Get(ctx, key).Result()
	if err == nil {
		return val, false, nil
	}
	if err != redis.Nil {
		s.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("cache get failed: %w", err)
	}

	claimed, err := s.redis.SetNX(ctx, key+":claim", "1", claimTTL).Result()
	if err != nil {
		s.logger.Error("cache claim failed", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("cache claim failed: %w", err)
	}
	if claimed {
		return "", true, nil
	}
	return "", false, ErrCacheMiss
}

// ReleaseClaim 归还计算权
func (s *RedisStore) ReleaseClaim(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key+":claim").Err(); err != nil {
		return fmt.Errorf("claim release failed: %w", err)
	}
	return nil
}

// Delete 删除缓存值
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Ping 检查 Redis 连接
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// Close 关闭存储
func (s *RedisStore) Close() error {
	s.logger.Info("closing redis store")
	return s.redis.Close()
}
