package primitive

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/primflow/types"
)

// BranchResult 单个并行分支的结果
type BranchResult struct {
	Branch string
	Index  int
	Output any
	Error  error
}

// Aggregator 聚合器接口
// 将各分支的结果聚合为最终输出
type Aggregator interface {
	Aggregate(ctx context.Context, results []BranchResult) (any, error)
}

// AggregatorFunc 聚合器函数类型
type AggregatorFunc func(ctx context.Context, results []BranchResult) (any, error)

// Aggregate 实现 Aggregator
func (f AggregatorFunc) Aggregate(ctx context.Context, results []BranchResult) (any, error) {
	return f(ctx, results)
}

// Parallel 并行组合
// 将同一输入同时分发给所有分支并发执行。每个分支拿到父 ExecContext 的
// Fork（共享 trace 谱系、独立 state），避免分支间的并发竞争。
//
// 结果顺序始终与分支声明顺序一致，与完成顺序无关。任一分支失败时，
// 等待全部分支结束后以 CompositeError 汇总所有分支错误返回。
type Parallel struct {
	name       string
	branches   []Primitive
	aggregator Aggregator
}

// NewParallel 创建并行组合
func NewParallel(name string, branches ...Primitive) *Parallel {
	return &Parallel{
		name:     name,
		branches: branches,
	}
}

// WithAggregator 设置聚合器；未设置时返回按声明顺序排列的输出切片 []any
func (p *Parallel) WithAggregator(agg Aggregator) *Parallel {
	p.aggregator = agg
	return p
}

// Execute 并发执行所有分支并汇合结果
func (p *Parallel) Execute(ctx context.Context, input any) (any, error) {
	if len(p.branches) == 0 {
		return nil, types.Permanent("parallel group has no branches").WithPrimitive(p.name)
	}

	ctx, ec := types.EnsureExecContext(ctx)

	results := make([]BranchResult, len(p.branches))
	var wg sync.WaitGroup

	for i, branch := range p.branches {
		wg.Add(1)
		go func(idx int, b Primitive) {
			defer wg.Done()

			// 每个分支独立 Fork；分支继承组的 ctx，
			// 组被取消时取消信号自动扇出到所有存活分支
			bctx := types.WithExecContext(ctx, ec.Fork())

			out, err := b.Execute(bctx, input)
			results[idx] = BranchResult{
				Branch: b.Name(),
				Index:  idx,
				Output: out,
				Error:  err,
			}
		}(i, branch)
	}

	// 等待全部分支结束再判定失败，以便呈现每一个分支错误
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("branch %s failed: %w", r.Branch, r.Error))
		}
	}
	if len(errs) > 0 {
		return nil, types.NewCompositeError(fmt.Sprintf("parallel group %s failed", p.name), errs...)
	}

	if p.aggregator != nil {
		aggregated, err := p.aggregator.Aggregate(ctx, results)
		if err != nil {
			return nil, fmt.Errorf("aggregation failed: %w", err)
		}
		return aggregated, nil
	}

	outputs := make([]any, len(results))
	for i, r := range results {
		outputs[i] = r.Output
	}
	return outputs, nil
}

func (p *Parallel) Name() string {
	return p.name
}

// AddBranch 追加分支
func (p *Parallel) AddBranch(branch Primitive) {
	p.branches = append(p.branches, branch)
}

// Branches 返回所有分支
func (p *Parallel) Branches() []Primitive {
	return p.branches
}
