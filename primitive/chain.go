package primitive

import (
	"context"
	"fmt"
)

// Chain 顺序组合
// 将多个原语串联为固定序列，前一步的输出作为下一步的输入；
// 任一步失败立即短路，后续步骤不会被调用。
type Chain struct {
	name  string
	steps []Primitive
}

// NewChain 创建顺序组合
func NewChain(name string, steps ...Primitive) *Chain {
	return &Chain{
		name:  name,
		steps: steps,
	}
}

// Execute 按声明顺序执行每个步骤
func (c *Chain) Execute(ctx context.Context, input any) (any, error) {
	current := input

	for i, step := range c.steps {
		// 检查上下文是否已取消
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := step.Execute(ctx, current)
		if err != nil {
			// %w 保留内层错误分类，调用方可用 types.KindOf 检查
			return nil, fmt.Errorf("step %d (%s) failed: %w", i+1, step.Name(), err)
		}

		current = result
	}

	return current, nil
}

func (c *Chain) Name() string {
	return c.name
}

// AddStep 追加步骤
func (c *Chain) AddStep(step Primitive) {
	c.steps = append(c.steps, step)
}

// Steps 返回所有步骤
func (c *Chain) Steps() []Primitive {
	return c.steps
}
