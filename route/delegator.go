package route

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

// SelectorFunc 根据编排阶段产出的计划选择执行原语
type SelectorFunc func(ctx context.Context, plan any) (primitive.Primitive, error)

// Delegator 两阶段委派
// 编排原语先对输入产出计划 / 分类，计划作为输入交给动态选中的执行原语。
// 编排阶段失败时绝不触达执行阶段。
type Delegator struct {
	name         string
	orchestrator primitive.Primitive
	selector     SelectorFunc
	logger       *zap.Logger
}

// NewDelegator 创建委派器
func NewDelegator(name string, orchestrator primitive.Primitive, selector SelectorFunc, logger *zap.Logger) *Delegator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Delegator{
		name:         name,
		orchestrator: orchestrator,
		selector:     selector,
		logger:       logger.With(zap.String("component", "delegator"), zap.String("delegator", name)),
	}
}

func (d *Delegator) Name() string {
	return d.name
}

// Execute 执行委派
// 1. 编排阶段产出计划
// 2. 选择执行原语
// 3. 计划作为执行阶段的输入
func (d *Delegator) Execute(ctx context.Context, input any) (any, error) {
	ctx, ec := types.EnsureExecContext(ctx)

	plan, err := d.orchestrator.Execute(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("orchestrator %s failed: %w", d.orchestrator.Name(), err)
	}

	executor, err := d.selector(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("executor selection failed: %w", err)
	}

	ec.SetMetadata("delegate.executor", executor.Name())
	d.logger.Debug("delegating", zap.String("executor", executor.Name()))

	out, err := executor.Execute(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("executor %s failed: %w", executor.Name(), err)
	}
	return out, nil
}
