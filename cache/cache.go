package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/primflow/observe"
	"github.com/BaSui01/primflow/primitive"
)

// 未命中时等待占有者写值的轮询间隔与占有有效期默认值
const (
	defaultClaimTTL   = 10 * time.Second
	claimPollInterval = 25 * time.Millisecond
)

// Cache 缓存包装器
// 用原语标识 + 输入的确定性序列化生成缓存键。命中直接返回存储值并记录
// 命中指标；未命中时同一键的并发计算只发生一次，这是该原语的核心不变式，
// 用于防止缓存击穿。合并发生在两个层面：
//   - 进程内：singleflight.Group 把同一实例上的并发请求合并为一次执行；
//   - 跨进程：Store.GetOrClaim 在存储层原子占有计算权，共享同一存储的
//     其他实例轮询值键等待占有者写入，占有者崩溃后占有按 claimTTL 过期，
//     等待方超时退化为自行计算。
//
// 缓存值经 JSON 序列化存储；命中路径返回反序列化后的值，
// 因此内层输出必须是 JSON 可往返的。
type Cache struct {
	inner    primitive.Primitive
	store    Store
	ttl      time.Duration
	keyFn    KeyFunc
	claimTTL time.Duration

	group  singleflight.Group
	sink   observe.Sink
	logger *zap.Logger
}

// CacheOption 配置 Cache
type CacheOption func(*Cache)

// WithKeyFunc 覆盖默认缓存键策略
func WithKeyFunc(fn KeyFunc) CacheOption {
	return func(c *Cache) { c.keyFn = fn }
}

// WithSink 设置指标出口（命中 / 未命中计数）
func WithSink(sink observe.Sink) CacheOption {
	return func(c *Cache) { c.sink = sink }
}

// WithClaimTTL 覆盖计算权占有的有效期
// 也是等待占有者写值的最长时间，应大于内层执行的典型耗时。
func WithClaimTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.claimTTL = ttl
		}
	}
}

// NewCache 创建缓存包装器
func NewCache(inner primitive.Primitive, store Store, ttl time.Duration, logger *zap.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		inner:    inner,
		store:    store,
		ttl:      ttl,
		keyFn:    DefaultKeyFunc,
		claimTTL: defaultClaimTTL,
		sink:     observe.NopSink{},
		logger:   logger.With(zap.String("component", "cache"), zap.String("primitive", inner.Name())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Name() string {
	return "cache:" + c.inner.Name()
}

func (c *Cache) Execute(ctx context.Context, input any) (any, error) {
	key := c.keyFn(c.inner.Name(), input)
	tags := map[string]string{"primitive": c.inner.Name()}

	raw, err := c.store.Get(ctx, key)
	if err == nil {
		if out, uerr := c.decode(raw); uerr == nil {
			c.sink.IncrCounter(observe.MetricCacheHits, tags)
			c.logger.Debug("cache hit", zap.String("key", key))
			return out, nil
		}
		// 损坏的条目当作未命中重新计算
		c.logger.Warn("corrupt cache entry, recomputing", zap.String("key", key))
	} else if !IsCacheMiss(err) {
		c.logger.Warn("cache store unavailable", zap.Error(err))
	}

	c.sink.IncrCounter(observe.MetricCacheMisses, tags)

	// 进程内 single-flight：同一键的并发请求只进入一次未命中路径
	result, err, _ := c.group.Do(key, func() (any, error) {
		return c.fill(ctx, key, input)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fill 处理未命中：在存储层争取计算权，赢者执行内层并写回，
// 输者轮询值键等待，超时或存储故障退化为自行计算。
func (c *Cache) fill(ctx context.Context, key string, input any) (any, error) {
	raw, claimed, err := c.store.GetOrClaim(ctx, key, c.claimTTL)
	switch {
	case err == nil && !claimed:
		// GetOrClaim 窗口内他人已写值
		if out, uerr := c.decode(raw); uerr == nil {
			return out, nil
		}
		c.logger.Warn("corrupt cache entry, recomputing", zap.String("key", key))

	case err == nil && claimed:
		// 值写入后归还计算权；内层失败同样归还，失败不跨进程共享
		defer func() {
			if rerr := c.store.ReleaseClaim(ctx, key); rerr != nil {
				c.logger.Debug("claim release failed", zap.String("key", key), zap.Error(rerr))
			}
		}()
		return c.compute(ctx, key, input)

	case IsCacheMiss(err):
		// 另一个进程持有计算权，等它写值
		if out, ok := c.awaitValue(ctx, key); ok {
			return out, nil
		}
		c.logger.Warn("claim holder did not publish in time, recomputing", zap.String("key", key))

	default:
		// 存储故障降级为直接执行，不让缓存层打断工作流
		c.logger.Warn("cache store unavailable", zap.Error(err))
	}

	return c.compute(ctx, key, input)
}

// compute 执行内层并把可序列化的结果写入存储
func (c *Cache) compute(ctx context.Context, key string, input any) (any, error) {
	out, err := c.inner.Execute(ctx, input)
	if err != nil {
		return nil, err
	}

	data, merr := json.Marshal(out)
	if merr != nil {
		c.logger.Warn("cache value not serializable, skipping store", zap.Error(merr))
		return out, nil
	}
	if serr := c.store.Set(ctx, key, string(data), c.ttl); serr != nil {
		c.logger.Warn("cache store failed", zap.String("key", key), zap.Error(serr))
	}
	return out, nil
}

// awaitValue 在 claimTTL 窗口内轮询值键，等待占有者写入
func (c *Cache) awaitValue(ctx context.Context, key string) (any, bool) {
	deadline := time.NewTimer(c.claimTTL)
	defer deadline.Stop()
	ticker := time.NewTicker(claimPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			raw, err := c.store.Get(ctx, key)
			if err != nil {
				if IsCacheMiss(err) {
					continue
				}
				return nil, false
			}
			if out, uerr := c.decode(raw); uerr == nil {
				return out, true
			}
			return nil, false
		case <-deadline.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (c *Cache) decode(raw string) (any, error) {
	var out any
	err := json.Unmarshal([]byte(raw), &out)
	return out, err
}
