package ratelimit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/primflow/observe"
	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

// Mode 限流行为
type Mode string

const (
	// ModeWait 无令牌时阻塞等待，受 context 截止时间约束
	ModeWait Mode = "wait"
	// ModeFailFast 无令牌时立即返回 RATE_LIMITED 错误
	ModeFailFast Mode = "fail_fast"
)

// Config 令牌桶限流配置
type Config struct {
	// 每秒补充的令牌数
	Rate float64 `yaml:"rate" json:"rate"`

	// 桶容量（突发上限）
	Burst int `yaml:"burst" json:"burst"`

	// 限流模式：wait 或 fail_fast
	Mode Mode `yaml:"mode" json:"mode"`
}

// DefaultConfig 返回默认限流配置
func DefaultConfig() Config {
	return Config{
		Rate:  10,
		Burst: 10,
		Mode:  ModeWait,
	}
}

// Limiter 令牌桶限流包装器
// 每次执行消耗一枚令牌。wait 模式下等待令牌（或 context 超时）；
// fail_fast 模式下令牌不足立即以 RATE_LIMITED 拒绝，不执行内层。
type Limiter struct {
	inner   primitive.Primitive
	limiter *rate.Limiter
	mode    Mode
	sink    observe.Sink
	logger  *zap.Logger
}

// LimiterOption 配置 Limiter
type LimiterOption func(*Limiter)

// WithSink 设置指标出口（限流拒绝计数）
func WithSink(sink observe.Sink) LimiterOption {
	return func(l *Limiter) { l.sink = sink }
}

// NewLimiter 创建限流包装器
func NewLimiter(inner primitive.Primitive, config Config, logger *zap.Logger, opts ...LimiterOption) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Mode == "" {
		config.Mode = ModeWait
	}
	l := &Limiter{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		mode:    config.Mode,
		sink:    observe.NopSink{},
		logger:  logger.With(zap.String("component", "ratelimit"), zap.String("primitive", inner.Name())),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Name() string {
	return "ratelimit:" + l.inner.Name()
}

func (l *Limiter) Execute(ctx context.Context, input any) (any, error) {
	switch l.mode {
	case ModeFailFast:
		if !l.limiter.Allow() {
			l.sink.IncrCounter(observe.MetricRateLimited, map[string]string{"primitive": l.inner.Name()})
			l.logger.Debug("request rejected, no tokens available")
			return nil, types.NewError(types.KindRateLimited,
				fmt.Sprintf("rate limit exceeded for %s", l.inner.Name())).WithPrimitive(l.inner.Name())
		}
	default:
		if err := l.limiter.Wait(ctx); err != nil {
			// context 在等待令牌期间到期
			l.sink.IncrCounter(observe.MetricRateLimited, map[string]string{"primitive": l.inner.Name()})
			return nil, types.NewError(types.KindRateLimited,
				fmt.Sprintf("gave up waiting for rate limit token: %v", err)).
				WithPrimitive(l.inner.Name()).WithCause(err)
		}
	}

	return l.inner.Execute(ctx, input)
}
