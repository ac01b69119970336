package route

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

func namedEcho(name string) primitive.Primitive {
	return primitive.NewFunc(name, func(ctx context.Context, input any) (any, error) {
		return name, nil
	})
}

func sizePolicy() Policy {
	return PolicyFunc(func(ctx context.Context, input any) (string, string, error) {
		s, _ := input.(string)
		if len(s) < 10 {
			return "fast", "input below size threshold", nil
		}
		return "quality", "input above size threshold", nil
	})
}

func TestRouter_SelectsByPolicy(t *testing.T) {
	r := NewRouter("dispatch", sizePolicy(), nil).
		Register("fast", namedEcho("A")).
		Register("quality", namedEcho("B"))

	ctx, ec := types.EnsureExecContext(context.Background())

	// 短输入走 fast
	out, err := r.Execute(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, "A", out)

	route, ok := ec.Metadata("route")
	require.True(t, ok)
	assert.Equal(t, "fast", route)

	rationale, ok := ec.Metadata("route.rationale")
	require.True(t, ok)
	assert.Equal(t, "input below size threshold", rationale)
}

func TestRouter_LongInputSelectsQuality(t *testing.T) {
	r := NewRouter("dispatch", sizePolicy(), nil).
		Register("fast", namedEcho("A")).
		Register("quality", namedEcho("B"))

	out, err := r.Execute(context.Background(), "a much longer input string")
	require.NoError(t, err)
	assert.Equal(t, "B", out)
}

func TestRouter_NoRouteMatched(t *testing.T) {
	policy := PolicyFunc(func(ctx context.Context, input any) (string, string, error) {
		return "unknown", "", nil
	})
	r := NewRouter("dispatch", policy, nil).Register("fast", namedEcho("A"))

	_, err := r.Execute(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, types.KindNoRouteMatched, types.KindOf(err))
}

func TestRouter_DefaultRouteFallback(t *testing.T) {
	policy := PolicyFunc(func(ctx context.Context, input any) (string, string, error) {
		return "unknown", "", nil
	})
	r := NewRouter("dispatch", policy, nil).
		Register("fast", namedEcho("A")).
		SetDefault("fast")

	ctx, ec := types.EnsureExecContext(context.Background())
	out, err := r.Execute(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "A", out)

	// 元数据记录实际执行的路由，而非策略返回的路由
	route, _ := ec.Metadata("route")
	assert.Equal(t, "fast", route)
}

func TestRouter_PolicyErrorPropagates(t *testing.T) {
	policy := PolicyFunc(func(ctx context.Context, input any) (string, string, error) {
		return "", "", assert.AnError
	})
	r := NewRouter("dispatch", policy, nil).Register("fast", namedEcho("A"))

	_, err := r.Execute(context.Background(), "x")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRouter_DestinationErrorWrapped(t *testing.T) {
	boom := types.Transient("backend unavailable")
	policy := PolicyFunc(func(ctx context.Context, input any) (string, string, error) {
		return "fast", "", nil
	})
	failing := primitive.NewFunc("A", func(ctx context.Context, input any) (any, error) {
		return nil, boom
	})
	r := NewRouter("dispatch", policy, nil).Register("fast", failing)

	_, err := r.Execute(context.Background(), "x")
	require.Error(t, err)
	// 目标失败保持原分类
	assert.Equal(t, types.KindTransient, types.KindOf(err))
}

func TestRouter_Routes(t *testing.T) {
	r := NewRouter("dispatch", sizePolicy(), nil).
		Register("fast", namedEcho("A")).
		Register("quality", namedEcho("B"))
	assert.ElementsMatch(t, []string{"fast", "quality"}, r.Routes())
}
