package observe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

// recordingSink captures every emission for assertions.
type recordingSink struct {
	mu         sync.Mutex
	spans      []recordedSpan
	counters   map[string][]map[string]string
	histograms map[string][]float64
}

type recordedSpan struct {
	name     string
	attrs    map[string]string
	duration time.Duration
	status   string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		counters:   make(map[string][]map[string]string),
		histograms: make(map[string][]float64),
	}
}

func (s *recordingSink) RecordSpan(name string, attrs map[string]string, duration time.Duration, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, recordedSpan{name: name, attrs: attrs, duration: duration, status: status})
}

func (s *recordingSink) IncrCounter(name string, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] = append(s.counters[name], tags)
}

func (s *recordingSink) RecordHistogram(name string, value float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histograms[name] = append(s.histograms[name], value)
}

func TestInstrumented_SuccessEmitsMetrics(t *testing.T) {
	sink := newRecordingSink()
	inner := primitive.NewFunc("work", func(ctx context.Context, input any) (any, error) {
		return "done", nil
	})
	w := NewInstrumented(inner, sink, nil)

	out, err := w.Execute(context.Background(), "in")
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	require.Len(t, sink.counters[MetricExecutions], 1)
	tags := sink.counters[MetricExecutions][0]
	assert.Equal(t, "work", tags["primitive"])
	assert.Equal(t, "success", tags["status"])

	require.Len(t, sink.histograms[MetricExecutionDuration], 1)
	assert.GreaterOrEqual(t, sink.histograms[MetricExecutionDuration][0], 0.0)

	require.Len(t, sink.spans, 1)
	assert.Equal(t, "work", sink.spans[0].name)
	assert.Equal(t, "success", sink.spans[0].status)
	_, hasKind := sink.spans[0].attrs["error.kind"]
	assert.False(t, hasKind)
}

func TestInstrumented_ErrorRecordsClassification(t *testing.T) {
	sink := newRecordingSink()
	inner := primitive.NewFunc("work", func(ctx context.Context, input any) (any, error) {
		return nil, types.Transient("upstream flapping")
	})
	w := NewInstrumented(inner, sink, nil)

	_, err := w.Execute(context.Background(), "in")
	require.Error(t, err)

	require.Len(t, sink.counters[MetricExecutions], 1)
	assert.Equal(t, "error", sink.counters[MetricExecutions][0]["status"])

	require.Len(t, sink.spans, 1)
	assert.Equal(t, "error", sink.spans[0].status)
	assert.Equal(t, string(types.KindTransient), sink.spans[0].attrs["error.kind"])
}

func TestInstrumented_DoesNotAlterContract(t *testing.T) {
	sink := newRecordingSink()
	inner := primitive.NewFunc("identity", func(ctx context.Context, input any) (any, error) {
		return input, nil
	})
	w := NewInstrumented(inner, sink, nil)

	assert.Equal(t, "identity", w.Name())

	out, err := w.Execute(context.Background(), map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, out)
}

func TestInstrumented_WritesLineageIntoExecContext(t *testing.T) {
	sink := newRecordingSink()
	inner := primitive.NewFunc("work", func(ctx context.Context, input any) (any, error) {
		return nil, nil
	})
	w := NewInstrumented(inner, sink, nil)

	ctx, ec := types.EnsureExecContext(context.Background())
	_, err := w.Execute(ctx, "in")
	require.NoError(t, err)

	// 全局 provider 默认是 noop，span context 无效时不覆盖谱系；
	// 这里只验证 workflow 标识进入了 span 属性
	require.Len(t, sink.spans, 1)
	assert.Equal(t, ec.WorkflowID(), sink.spans[0].attrs["workflow_id"])
}

func TestNopSink_Inert(t *testing.T) {
	var s NopSink
	s.RecordSpan("x", nil, time.Second, "success")
	s.IncrCounter("x", nil)
	s.RecordHistogram("x", 1, nil)
}
