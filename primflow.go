// Package primflow provides a top-level convenience entry point for
// composing workflow primitives with shared configuration.
//
// Usage:
//
//	import "github.com/BaSui01/primflow"
//
//	engine, err := primflow.New(primflow.WithConfigFile("config.yaml"))
//	flow := engine.Retry(engine.Timeout(fetch, 0)) // 0 = configured default
//	out, err := flow.Execute(ctx, input)
//
// Every helper returns a plain Primitive, so engine-built wrappers compose
// freely with hand-constructed ones.
package primflow

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/primflow/batch"
	"github.com/BaSui01/primflow/cache"
	"github.com/BaSui01/primflow/config"
	"github.com/BaSui01/primflow/internal/telemetry"
	"github.com/BaSui01/primflow/observe"
	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/ratelimit"
	"github.com/BaSui01/primflow/resilience"
	"github.com/BaSui01/primflow/route"
)

// Engine 持有共享配置、日志器、指标出口与缓存存储，
// 为各原语提供带默认值的便捷构造。
type Engine struct {
	cfg        *config.Config
	logger     *zap.Logger
	sink       observe.Sink
	store      cache.Store
	registerer prometheus.Registerer
	providers  *telemetry.Providers
}

// Option 配置 Engine
type Option func(*Engine) error

// WithConfig 使用现成配置
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) error {
		e.cfg = cfg
		return nil
	}
}

// WithConfigFile 从 YAML 文件加载配置
func WithConfigFile(path string) Option {
	return func(e *Engine) error {
		cfg, err := config.NewLoader().WithConfigPath(path).Load()
		if err != nil {
			return err
		}
		e.cfg = cfg
		return nil
	}
}

// WithLogger 设置自定义 zap logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithSink 设置指标 / 追踪出口
func WithSink(sink observe.Sink) Option {
	return func(e *Engine) error {
		e.sink = sink
		return nil
	}
}

// WithStore 设置缓存存储后端
func WithStore(store cache.Store) Option {
	return func(e *Engine) error {
		e.store = store
		return nil
	}
}

// WithRegisterer 设置 Prometheus 注册表
// 测试中传入 prometheus.NewRegistry() 避免全局注册表重复注册冲突。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) error {
		e.registerer = reg
		return nil
	}
}

// New 创建 Engine
// 未提供配置时使用默认配置；未提供 logger 时按日志配置构建；
// 未提供存储时按 cache.store 配置选择 memory 或 redis；
// 未提供 sink 时按 telemetry / metrics 配置组装出口，并在
// telemetry.enabled 时初始化 OTel SDK（随 Shutdown 释放）。
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.cfg == nil {
		e.cfg = config.DefaultConfig()
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if e.logger == nil {
		e.logger = config.BuildLogger(e.cfg.Log)
	}

	// OTel SDK 先于 sink 初始化：OTelSink 读取全局 provider
	providers, err := telemetry.Init(e.cfg.Telemetry, e.logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	e.providers = providers

	if e.sink == nil {
		e.sink = buildSink(e.cfg, e.registerer, e.logger)
	}
	if e.store == nil {
		switch e.cfg.Cache.Store {
		case "redis":
			store, err := cache.NewRedisStore(cache.RedisConfig{
				Addr:         e.cfg.Redis.Addr,
				Password:     e.cfg.Redis.Password,
				DB:           e.cfg.Redis.DB,
				DefaultTTL:   e.cfg.Cache.TTL,
				PoolSize:     e.cfg.Redis.PoolSize,
				MinIdleConns: e.cfg.Redis.MinIdleConns,
			}, e.logger)
			if err != nil {
				return nil, fmt.Errorf("create redis store: %w", err)
			}
			e.store = store
		default:
			e.store = cache.NewMemoryStore()
		}
	}

	return e, nil
}

// buildSink 按配置组装指标 / 追踪出口：
// telemetry 启用走 OTel，metrics 启用走 Prometheus，同时启用则两路都推。
func buildSink(cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) observe.Sink {
	var sinks []observe.Sink
	if cfg.Telemetry.Enabled {
		sinks = append(sinks, observe.NewOTelSink(logger))
	}
	if cfg.Metrics.Enabled {
		sinks = append(sinks, observe.NewPromCollector(cfg.Metrics.Namespace, reg, logger))
	}
	return observe.Combine(sinks...)
}

// Shutdown 冲刷并关闭引擎持有的遥测管道，未启用遥测时为空操作
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.providers.Shutdown(ctx)
}

// Config 返回引擎配置
func (e *Engine) Config() *config.Config { return e.cfg }

// Logger 返回引擎日志器
func (e *Engine) Logger() *zap.Logger { return e.logger }

// Func 用函数创建原语
func (e *Engine) Func(name string, fn primitive.Func) primitive.Primitive {
	return primitive.NewFunc(name, fn)
}

// Chain 顺序组合
func (e *Engine) Chain(name string, steps ...primitive.Primitive) *primitive.Chain {
	return primitive.NewChain(name, steps...)
}

// Parallel 并行组合
func (e *Engine) Parallel(name string, branches ...primitive.Primitive) *primitive.Parallel {
	return primitive.NewParallel(name, branches...)
}

// Retry 重试包装，配置来自 retry 段
func (e *Engine) Retry(inner primitive.Primitive) *resilience.Retry {
	backoff := &resilience.ExponentialBackoff{
		Initial:    e.cfg.Retry.InitialBackoff,
		Max:        e.cfg.Retry.MaxBackoff,
		Multiplier: e.cfg.Retry.Multiplier,
		Jitter:     e.cfg.Retry.Jitter,
	}
	return resilience.NewRetry(inner, &resilience.RetryPolicy{
		MaxRetries: e.cfg.Retry.MaxRetries,
		Backoff:    backoff,
	}, e.logger)
}

// Fallback 降级包装
func (e *Engine) Fallback(primary primitive.Primitive, fallbacks ...primitive.Primitive) *resilience.Fallback {
	return resilience.NewFallback(primary, fallbacks, e.logger)
}

// Timeout 超时包装，deadline 为零时用 timeout.deadline 配置
func (e *Engine) Timeout(inner primitive.Primitive, deadline time.Duration) *resilience.Timeout {
	if deadline <= 0 {
		deadline = e.cfg.Timeout.Deadline
	}
	return resilience.NewTimeout(inner, deadline, e.logger)
}

// CircuitBreaker 熔断包装，配置来自 circuit_breaker 段
func (e *Engine) CircuitBreaker(inner primitive.Primitive) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(inner, resilience.CircuitBreakerConfig{
		FailureThreshold:  e.cfg.CircuitBreaker.FailureThreshold,
		RecoveryTimeout:   e.cfg.CircuitBreaker.RecoveryTimeout,
		HalfOpenMaxProbes: e.cfg.CircuitBreaker.HalfOpenMaxProbes,
		SuccessThreshold:  e.cfg.CircuitBreaker.SuccessThreshold,
	}, e.logger)
}

// Cache 缓存包装，ttl 为零时用 cache.ttl 配置
func (e *Engine) Cache(inner primitive.Primitive, ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = e.cfg.Cache.TTL
	}
	return cache.NewCache(inner, e.store, ttl, e.logger, cache.WithSink(e.sink))
}

// RateLimit 限流包装，配置来自 rate_limit 段
func (e *Engine) RateLimit(inner primitive.Primitive) *ratelimit.Limiter {
	return ratelimit.NewLimiter(inner, ratelimit.Config{
		Rate:  e.cfg.RateLimit.Rate,
		Burst: e.cfg.RateLimit.Burst,
		Mode:  ratelimit.Mode(e.cfg.RateLimit.Mode),
	}, e.logger, ratelimit.WithSink(e.sink))
}

// Batch 批处理包装，配置来自 batch 段
func (e *Engine) Batch(inner primitive.Primitive) *batch.Batcher {
	return batch.NewBatcher(inner, batch.Config{
		MaxBatchSize: e.cfg.Batch.MaxBatchSize,
		MaxWait:      e.cfg.Batch.MaxWait,
		QueueSize:    e.cfg.Batch.QueueSize,
	}, e.logger)
}

// Router 策略路由
func (e *Engine) Router(name string, policy route.Policy) *route.Router {
	return route.NewRouter(name, policy, e.logger)
}

// Delegator 两阶段委派
func (e *Engine) Delegator(name string, orchestrator primitive.Primitive, selector route.SelectorFunc) *route.Delegator {
	return route.NewDelegator(name, orchestrator, selector, e.logger)
}

// Instrument 观测包装
func (e *Engine) Instrument(inner primitive.Primitive) *observe.Instrumented {
	return observe.NewInstrumented(inner, e.sink, e.logger)
}
