package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/primflow/mock"
	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

func TestFallback_PrimarySucceeds(t *testing.T) {
	primary := mock.New("primary", mock.WithReturn("primary-result"))
	f1 := mock.New("f1", mock.WithReturn("f1-result"))
	f2 := mock.New("f2", mock.WithReturn("f2-result"))

	fb := NewFallback(primary, []primitive.Primitive{f1, f2}, zap.NewNop())

	out, err := fb.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "primary-result", out)

	// 主成功时任何降级都不应被调用
	assert.Equal(t, 0, f1.Calls())
	assert.Equal(t, 0, f2.Calls())
}

func TestFallback_TriesInOrder(t *testing.T) {
	primary := mock.New("primary", mock.WithScript(mock.Outcome{Err: types.Transient("down")}))
	f1 := mock.New("f1", mock.WithScript(mock.Outcome{Err: types.Transient("also down")}))
	f2 := mock.New("f2", mock.WithReturn("f2-result"))

	fb := NewFallback(primary, []primitive.Primitive{f1, f2}, zap.NewNop())

	ec := types.NewExecContext()
	ctx := types.WithExecContext(context.Background(), ec)

	out, err := fb.Execute(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "f2-result", out)
	assert.Equal(t, 1, f1.Calls())
	assert.Equal(t, 1, f2.Calls())

	used, ok := ec.Metadata("fallback.used")
	require.True(t, ok)
	assert.Equal(t, "f2", used)
}

func TestFallback_AllFail(t *testing.T) {
	primary := mock.New("primary", mock.WithScript(mock.Outcome{Err: types.Transient("p down")}))
	f1 := mock.New("f1", mock.WithScript(mock.Outcome{Err: types.Permanent("f1 rejected")}))

	fb := NewFallback(primary, []primitive.Primitive{f1}, zap.NewNop())

	_, err := fb.Execute(context.Background(), nil)
	require.Error(t, err)

	// 耗尽后返回 CompositeError，保留每次尝试的分类
	var ce *types.CompositeError
	require.True(t, errors.As(err, &ce))
	assert.Len(t, ce.Errs, 2)
	assert.Equal(t, []types.ErrorKind{types.KindTransient, types.KindPermanent}, ce.Kinds())
}

func TestFallback_TriggerKindsFilter(t *testing.T) {
	// 只有 Transient 触发降级；Permanent 原样传播
	primary := mock.New("primary", mock.WithScript(mock.Outcome{Err: types.Permanent("bad input")}))
	f1 := mock.New("f1", mock.WithReturn("f1-result"))

	fb := NewFallback(primary, []primitive.Primitive{f1}, zap.NewNop(),
		WithTriggerKinds(types.KindTransient))

	_, err := fb.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.KindPermanent, types.KindOf(err))
	assert.Equal(t, 0, f1.Calls(), "non-triggering error must not invoke fallbacks")
}

func TestFallback_DefaultTriggersAllKinds(t *testing.T) {
	primary := mock.New("primary", mock.WithScript(mock.Outcome{Err: types.Permanent("bad")}))
	f1 := mock.New("f1", mock.WithReturn("rescued"))

	fb := NewFallback(primary, []primitive.Primitive{f1}, zap.NewNop())

	out, err := fb.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "rescued", out)
}
