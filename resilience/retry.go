package resilience

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

// RetryPolicy 定义重试策略配置
type RetryPolicy struct {
	// MaxRetries 最大重试次数（0 表示不重试，直通内层）
	MaxRetries int
	// Backoff 退避策略（为空使用默认指数退避）
	Backoff BackoffStrategy
	// RetryableKinds 触发重试的错误分类（为空仅重试 Transient）
	RetryableKinds []types.ErrorKind
	// OnRetry 重试回调
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy 返回默认的重试策略
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 3,
		Backoff:    DefaultBackoff(),
	}
}

// Retry 重试包装器
// 内层失败且分类可重试时按退避策略重新执行；Permanent 等不可重试
// 错误立即向上传播。尝试次数写入 ExecContext metadata 供观测使用。
type Retry struct {
	inner  primitive.Primitive
	policy *RetryPolicy
	logger *zap.Logger
}

// NewRetry 创建重试包装器
func NewRetry(inner primitive.Primitive, policy *RetryPolicy, logger *zap.Logger) *Retry {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.Backoff == nil {
		policy.Backoff = DefaultBackoff()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retry{
		inner:  inner,
		policy: policy,
		logger: logger.With(zap.String("component", "retry"), zap.String("primitive", inner.Name())),
	}
}

func (r *Retry) Name() string {
	return "retry:" + r.inner.Name()
}

// Execute 核心重试逻辑：退避等待 + 错误分类过滤
func (r *Retry) Execute(ctx context.Context, input any) (any, error) {
	ctx, ec := types.EnsureExecContext(ctx)

	var lastErr error
	var result any

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		// 第一次执行不延迟
		if attempt > 0 {
			delay := r.policy.Backoff.Delay(attempt)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			// 等待延迟，同时监听 context 取消
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, lastErr = r.inner.Execute(ctx, input)

		// 尝试次数记入 metadata（成功与失败路径都记录）
		ec.SetMetadata("retry."+r.inner.Name()+".attempts", attempt+1)

		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if !r.isRetryable(lastErr) {
			r.logger.Debug("error not retryable", zap.Error(lastErr))
			return nil, lastErr
		}

		if attempt >= r.policy.MaxRetries {
			break
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)

	return nil, fmt.Errorf("failed after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// isRetryable 检查错误分类是否在可重试列表中
func (r *Retry) isRetryable(err error) bool {
	kind := types.KindOf(err)

	// 默认只重试 Transient
	if len(r.policy.RetryableKinds) == 0 {
		return kind == types.KindTransient
	}

	for _, k := range r.policy.RetryableKinds {
		if kind == k {
			return true
		}
	}
	return false
}
