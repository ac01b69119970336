package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

// Timeout 超时包装器
// 为内层执行设置截止时间。到期时通过 context 向内层发出协作取消信号，
// 并以 DeadlineExceeded 分类失败。取消是尽力而为的：已越过不可中断点的
// 内层操作可能在后台完成，其结果被丢弃。
//
// defer cancel 保证成功与到期两条路径上内层 context 持有的资源都被释放。
type Timeout struct {
	inner    primitive.Primitive
	deadline time.Duration
	logger   *zap.Logger
}

// NewTimeout 创建超时包装器
func NewTimeout(inner primitive.Primitive, deadline time.Duration, logger *zap.Logger) *Timeout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timeout{
		inner:    inner,
		deadline: deadline,
		logger:   logger.With(zap.String("component", "timeout"), zap.String("primitive", inner.Name())),
	}
}

func (t *Timeout) Name() string {
	return "timeout:" + t.inner.Name()
}

type timeoutOutcome struct {
	output any
	err    error
}

func (t *Timeout) Execute(ctx context.Context, input any) (any, error) {
	tctx, cancel := context.WithTimeout(ctx, t.deadline)
	defer cancel()

	// 缓冲通道：内层迟到的结果不会阻塞 goroutine 泄漏
	done := make(chan timeoutOutcome, 1)

	go func() {
		out, err := t.inner.Execute(tctx, input)
		done <- timeoutOutcome{output: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			// 内层自己观察到截止时间时也统一翻译为 DeadlineExceeded
			if errors.Is(o.err, context.DeadlineExceeded) {
				return nil, t.deadlineError(o.err)
			}
			return nil, o.err
		}
		return o.output, nil

	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			t.logger.Warn("execution exceeded deadline",
				zap.Duration("deadline", t.deadline),
			)
			return nil, t.deadlineError(tctx.Err())
		}
		// 外层取消：按普通失败传播
		return nil, tctx.Err()
	}
}

func (t *Timeout) deadlineError(cause error) error {
	return types.NewError(types.KindDeadlineExceeded,
		fmt.Sprintf("%s exceeded deadline %v", t.inner.Name(), t.deadline)).
		WithPrimitive(t.inner.Name()).
		WithCause(cause)
}
