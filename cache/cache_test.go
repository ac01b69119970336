package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/primflow/primitive"
)

// countingPrimitive tracks how many times Execute actually ran.
type countingPrimitive struct {
	name  string
	delay time.Duration
	calls atomic.Int64
	fn    func(input any) (any, error)
}

func (p *countingPrimitive) Name() string { return p.name }

func (p *countingPrimitive) Execute(ctx context.Context, input any) (any, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.fn != nil {
		return p.fn(input)
	}
	return map[string]any{"v": float64(1)}, nil
}

func TestCache_MissThenHit(t *testing.T) {
	inner := &countingPrimitive{name: "lookup"}
	c := NewCache(inner, NewMemoryStore(), time.Minute, nil)

	out1, err := c.Execute(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())

	out2, err := c.Execute(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load(), "hit must not re-execute")
	assert.Equal(t, out1, out2)
}

func TestCache_DistinctInputsDistinctKeys(t *testing.T) {
	inner := &countingPrimitive{name: "lookup", fn: func(input any) (any, error) {
		return input, nil
	}}
	c := NewCache(inner, NewMemoryStore(), time.Minute, nil)

	_, err := c.Execute(context.Background(), "a")
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCache_ErrorNotCached(t *testing.T) {
	boom := assert.AnError
	fail := true
	inner := &countingPrimitive{name: "flaky", fn: func(input any) (any, error) {
		if fail {
			return nil, boom
		}
		return "ok", nil
	}}
	c := NewCache(inner, NewMemoryStore(), time.Minute, nil)

	_, err := c.Execute(context.Background(), "q")
	require.ErrorIs(t, err, boom)

	fail = false
	out, err := c.Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int64(2), inner.calls.Load())
}

// 50 个并发请求同时打到冷缓存，single-flight 必须合并为一次内层执行。
func TestCache_SingleFlightColdCache(t *testing.T) {
	inner := &countingPrimitive{name: "expensive", delay: 50 * time.Millisecond}
	c := NewCache(inner, NewMemoryStore(), time.Minute, nil)

	const n = 50
	var wg sync.WaitGroup
	outputs := make([]any, n)
	errs := make([]error, n)

	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			outputs[i], errs[i] = c.Execute(context.Background(), "same-query")
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), inner.calls.Load(), "concurrent identical requests must coalesce")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, map[string]any{"v": float64(1)}, outputs[i])
	}
}

func TestCache_SingleFlightErrorSharedOnce(t *testing.T) {
	inner := &countingPrimitive{name: "failing", delay: 30 * time.Millisecond,
		fn: func(input any) (any, error) { return nil, assert.AnError }}
	c := NewCache(inner, NewMemoryStore(), time.Minute, nil)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = c.Execute(context.Background(), "q")
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), inner.calls.Load())
	for i := 0; i < n; i++ {
		require.ErrorIs(t, errs[i], assert.AnError)
	}
}

// 两个共享同一存储的 Cache 实例（模拟两个进程）并发打冷缓存，
// 存储层的 GetOrClaim 必须把计算合并为一次：赢者执行并写值，
// 输者轮询值键拿到同一结果。
func TestCache_CrossInstanceSingleFlight(t *testing.T) {
	store := NewMemoryStore()
	inner := &countingPrimitive{name: "expensive", delay: 50 * time.Millisecond}

	c1 := NewCache(inner, store, time.Minute, nil, WithClaimTTL(2*time.Second))
	c2 := NewCache(inner, store, time.Minute, nil, WithClaimTTL(2*time.Second))

	var wg sync.WaitGroup
	outputs := make([]any, 2)
	errs := make([]error, 2)
	start := make(chan struct{})
	for i, c := range []*Cache{c1, c2} {
		wg.Add(1)
		go func(i int, c *Cache) {
			defer wg.Done()
			<-start
			outputs[i], errs[i] = c.Execute(context.Background(), "same-query")
		}(i, c)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), inner.calls.Load(), "instances sharing a store must coalesce")
	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, map[string]any{"v": float64(1)}, outputs[i])
	}
}

// 占有者一直不写值时，等待方在占有过期后退化为自行计算。
func TestCache_StaleClaimFallsBackToCompute(t *testing.T) {
	store := NewMemoryStore()
	inner := &countingPrimitive{name: "lookup"}
	c := NewCache(inner, store, time.Minute, nil, WithClaimTTL(100*time.Millisecond))

	// 预先占住计算权，模拟崩溃的持有者
	key := DefaultKeyFunc("lookup", "q")
	_, claimed, err := store.GetOrClaim(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	out, err := c.Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, map[string]any{"v": float64(1)}, out)
}

func TestCache_TTLExpiryReExecutes(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisConfig{Addr: mr.Addr(), PoolSize: 2}, nil)
	require.NoError(t, err)
	defer store.Close()

	inner := &countingPrimitive{name: "lookup"}
	c := NewCache(inner, store, 60*time.Second, nil)

	_, err = c.Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())

	// 60 秒内命中
	_, err = c.Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())

	// 过期后重新执行
	mr.FastForward(61 * time.Second)
	_, err = c.Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCache_CorruptEntryRecomputes(t *testing.T) {
	store := NewMemoryStore()
	inner := &countingPrimitive{name: "lookup"}
	c := NewCache(inner, store, time.Minute, nil)

	key := DefaultKeyFunc("lookup", "q")
	require.NoError(t, store.Set(context.Background(), key, "{not json", time.Minute))

	out, err := c.Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, map[string]any{"v": float64(1)}, out)
}

func TestCache_NonSerializableOutputStillReturned(t *testing.T) {
	inner := &countingPrimitive{name: "handle", fn: func(input any) (any, error) {
		return make(chan int), nil // json.Marshal 无法处理
	}}
	c := NewCache(inner, NewMemoryStore(), time.Minute, nil)

	out, err := c.Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.NotNil(t, out)

	// 未写入存储，下次仍然执行
	_, err = c.Execute(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCache_Name(t *testing.T) {
	c := NewCache(primitive.NewFunc("lookup", func(ctx context.Context, input any) (any, error) {
		return input, nil
	}), NewMemoryStore(), time.Minute, nil)
	assert.Equal(t, "cache:lookup", c.Name())
}
