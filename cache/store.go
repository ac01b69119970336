package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Store 外部键值存储契约
// Cache 原语只依赖这个窄接口，不绑定任何具体实现。
//
// GetOrClaim 提供原子的"取值或占有计算权"语义，使同一键的并发计算
// 在跨进程（不同 Cache 实例共享同一存储）时也只发生一次：
//   - 值存在            → (value, false, nil)
//   - 值缺失且占有成功  → ("", true, nil)，调用方计算后 Set
//   - 值缺失且他人占有  → ("", false, ErrCacheMiss)，调用方轮询等待
//
// 占有记录以 claimTTL 过期，占有者崩溃后计算权自动释放；
// 正常路径上占有者计算结束后调用 ReleaseClaim 主动归还。
type Store interface {
	// Get 获取缓存值，未命中返回 ErrCacheMiss
	Get(ctx context.Context, key string) (string, error)
	// Set 设置缓存值及其过期时间
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// GetOrClaim 原子地获取缓存值或占有该键的计算权
	GetOrClaim(ctx context.Context, key string, claimTTL time.Duration) (value string, claimed bool, err error)
	// ReleaseClaim 归还计算权，未占有时为空操作
	ReleaseClaim(ctx context.Context, key string) error
}
