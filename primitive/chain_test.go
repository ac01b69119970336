package primitive

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/primflow/types"
)

func TestChain(t *testing.T) {
	// 创建测试步骤
	step1 := NewFunc("step1", func(ctx context.Context, input any) (any, error) {
		return input.(string) + " -> step1", nil
	})
	step2 := NewFunc("step2", func(ctx context.Context, input any) (any, error) {
		return input.(string) + " -> step2", nil
	})
	step3 := NewFunc("step3", func(ctx context.Context, input any) (any, error) {
		return input.(string) + " -> step3", nil
	})

	chain := NewChain("test-chain", step1, step2, step3)

	result, err := chain.Execute(context.Background(), "start")
	if err != nil {
		t.Fatalf("chain execution failed: %v", err)
	}

	expected := "start -> step1 -> step2 -> step3"
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestChain_ShortCircuit(t *testing.T) {
	calls := 0
	step1 := NewFunc("step1", func(ctx context.Context, input any) (any, error) {
		return "step1", nil
	})
	step2 := NewFunc("step2", func(ctx context.Context, input any) (any, error) {
		return nil, types.Transient("step2 failed")
	})
	step3 := NewFunc("step3", func(ctx context.Context, input any) (any, error) {
		calls++
		return "step3", nil
	})

	chain := NewChain("test-chain-error", step1, step2, step3)

	_, err := chain.Execute(context.Background(), "start")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// 失败短路：step3 不应被调用
	if calls != 0 {
		t.Errorf("expected step3 never invoked, got %d calls", calls)
	}

	// 包装后分类必须保留
	if types.KindOf(err) != types.KindTransient {
		t.Errorf("expected transient kind through wrap chain, got %q", types.KindOf(err))
	}
}

func TestChain_ContextCancellation(t *testing.T) {
	step1 := NewFunc("step1", func(ctx context.Context, input any) (any, error) {
		return "step1", nil
	})

	chain := NewChain("test-chain-cancel", step1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // 立即取消

	_, err := chain.Execute(ctx, "start")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestChain_AddStep(t *testing.T) {
	chain := NewChain("test-chain-add")
	chain.AddStep(NewFunc("s", func(ctx context.Context, input any) (any, error) {
		return input, nil
	}))

	if len(chain.Steps()) != 1 {
		t.Errorf("expected 1 step, got %d", len(chain.Steps()))
	}
}
