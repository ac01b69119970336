package resilience

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

// Fallback 降级包装器
// 主原语失败且错误分类命中触发条件时，按声明顺序依次尝试降级原语，
// 直到某个成功；全部失败时返回汇总所有尝试错误的 CompositeError。
//
// TriggerKinds 为空时所有错误分类都触发降级；未命中触发条件的错误
// 原样向上传播，不尝试任何降级。
type Fallback struct {
	primary      primitive.Primitive
	fallbacks    []primitive.Primitive
	triggerKinds []types.ErrorKind
	logger       *zap.Logger
}

// FallbackOption 配置 Fallback
type FallbackOption func(*Fallback)

// WithTriggerKinds 限定触发降级的错误分类
func WithTriggerKinds(kinds ...types.ErrorKind) FallbackOption {
	return func(f *Fallback) { f.triggerKinds = kinds }
}

// NewFallback 创建降级包装器
func NewFallback(primary primitive.Primitive, fallbacks []primitive.Primitive, logger *zap.Logger, opts ...FallbackOption) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fallback{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    logger.With(zap.String("component", "fallback"), zap.String("primary", primary.Name())),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fallback) Name() string {
	return "fallback:" + f.primary.Name()
}

func (f *Fallback) Execute(ctx context.Context, input any) (any, error) {
	ctx, ec := types.EnsureExecContext(ctx)

	result, err := f.primary.Execute(ctx, input)
	if err == nil {
		return result, nil
	}

	if !f.triggered(err) {
		// 未命中触发条件：原样传播，不尝试降级
		return nil, err
	}

	attempts := []error{fmt.Errorf("primary %s failed: %w", f.primary.Name(), err)}

	for _, fb := range f.fallbacks {
		f.logger.Debug("trying fallback",
			zap.String("fallback", fb.Name()),
			zap.Error(err),
		)

		result, ferr := fb.Execute(ctx, input)
		if ferr == nil {
			ec.SetMetadata("fallback.used", fb.Name())
			f.logger.Info("fallback succeeded", zap.String("fallback", fb.Name()))
			return result, nil
		}
		attempts = append(attempts, fmt.Errorf("fallback %s failed: %w", fb.Name(), ferr))
	}

	f.logger.Warn("all fallbacks exhausted", zap.Int("attempts", len(attempts)))
	return nil, types.NewCompositeError("fallback chain exhausted", attempts...)
}

// triggered 检查错误分类是否触发降级
func (f *Fallback) triggered(err error) bool {
	// 为空时所有分类都触发
	if len(f.triggerKinds) == 0 {
		return true
	}
	kind := types.KindOf(err)
	for _, k := range f.triggerKinds {
		if kind == k {
			return true
		}
	}
	return false
}
