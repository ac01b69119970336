package route

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

func TestDelegator_PlanFlowsToExecutor(t *testing.T) {
	orchestrator := primitive.NewFunc("planner", func(ctx context.Context, input any) (any, error) {
		return Classification{Tier: "simple", Route: "fast"}, nil
	})

	fast := primitive.NewFunc("fast-exec", func(ctx context.Context, input any) (any, error) {
		plan := input.(Classification)
		return fmt.Sprintf("executed tier=%s", plan.Tier), nil
	})

	selector := func(ctx context.Context, plan any) (primitive.Primitive, error) {
		return fast, nil
	}

	d := NewDelegator("delegate", orchestrator, selector, nil)
	ctx, ec := types.EnsureExecContext(context.Background())

	out, err := d.Execute(ctx, "request")
	require.NoError(t, err)
	assert.Equal(t, "executed tier=simple", out)

	executor, ok := ec.Metadata("delegate.executor")
	require.True(t, ok)
	assert.Equal(t, "fast-exec", executor)
}

func TestDelegator_OrchestratorFailureSkipsExecutor(t *testing.T) {
	var executorCalls atomic.Int64

	orchestrator := primitive.NewFunc("planner", func(ctx context.Context, input any) (any, error) {
		return nil, types.Permanent("cannot plan")
	})
	executor := primitive.NewFunc("exec", func(ctx context.Context, input any) (any, error) {
		executorCalls.Add(1)
		return "never", nil
	})

	d := NewDelegator("delegate", orchestrator, func(ctx context.Context, plan any) (primitive.Primitive, error) {
		return executor, nil
	}, nil)

	_, err := d.Execute(context.Background(), "request")
	require.Error(t, err)
	assert.Equal(t, types.KindPermanent, types.KindOf(err))
	assert.Equal(t, int64(0), executorCalls.Load(), "executor must not run when orchestration fails")
}

func TestDelegator_SelectorFailure(t *testing.T) {
	orchestrator := primitive.NewFunc("planner", func(ctx context.Context, input any) (any, error) {
		return "plan", nil
	})
	d := NewDelegator("delegate", orchestrator, func(ctx context.Context, plan any) (primitive.Primitive, error) {
		return nil, assert.AnError
	}, nil)

	_, err := d.Execute(context.Background(), "request")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDelegator_ExecutorErrorPreservesKind(t *testing.T) {
	orchestrator := primitive.NewFunc("planner", func(ctx context.Context, input any) (any, error) {
		return "plan", nil
	})
	executor := primitive.NewFunc("exec", func(ctx context.Context, input any) (any, error) {
		return nil, types.Transient("busy")
	})
	d := NewDelegator("delegate", orchestrator, func(ctx context.Context, plan any) (primitive.Primitive, error) {
		return executor, nil
	}, nil)

	_, err := d.Execute(context.Background(), "request")
	require.Error(t, err)
	assert.Equal(t, types.KindTransient, types.KindOf(err))
}
