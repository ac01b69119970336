package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

// Instrumented wraps any primitive without altering its input/output
// contract. Each execution opens a trace span tagged with primitive
// identity and ExecContext identifiers, increments the execution counter
// (tagged success/error), records a duration histogram, and attaches the
// final error classification to the span on failure.
//
// Trace lineage is written back into the ExecContext so forked branches
// produce child spans under the same trace.
type Instrumented struct {
	inner  primitive.Primitive
	tracer oteltrace.Tracer
	sink   Sink
	logger *zap.Logger
}

// NewInstrumented wraps inner with tracing and metrics. A nil sink falls
// back to NopSink; the tracer comes from the global OTel provider.
func NewInstrumented(inner primitive.Primitive, sink Sink, logger *zap.Logger) *Instrumented {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{
		inner:  inner,
		tracer: otel.Tracer("primflow"),
		sink:   sink,
		logger: logger.With(zap.String("component", "instrument"), zap.String("primitive", inner.Name())),
	}
}

func (w *Instrumented) Name() string {
	return w.inner.Name()
}

func (w *Instrumented) Execute(ctx context.Context, input any) (any, error) {
	ctx, ec := types.EnsureExecContext(ctx)

	ctx, span := w.tracer.Start(ctx, w.inner.Name(),
		oteltrace.WithAttributes(
			attribute.String("primitive", w.inner.Name()),
			attribute.String("workflow_id", ec.WorkflowID()),
			attribute.String("correlation_id", ec.CorrelationID()),
		),
	)
	defer span.End()

	// 把 span 谱系写回 ExecContext，Fork 出的子分支继承同一 trace
	sc := span.SpanContext()
	if sc.IsValid() {
		ec.SetSpan(sc.TraceID().String(), sc.SpanID().String())
	}

	start := time.Now()
	output, err := w.inner.Execute(ctx, input)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		kind := types.KindOf(err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.kind", string(kind)))
		span.SetStatus(codes.Error, string(kind))

		w.logger.Debug("execution failed",
			zap.String("error_kind", string(kind)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}

	tags := map[string]string{"primitive": w.inner.Name(), "status": status}
	w.sink.IncrCounter(MetricExecutions, tags)
	w.sink.RecordHistogram(MetricExecutionDuration, duration.Seconds(),
		map[string]string{"primitive": w.inner.Name()})

	attrs := map[string]string{
		"primitive":   w.inner.Name(),
		"workflow_id": ec.WorkflowID(),
	}
	if err != nil {
		attrs["error.kind"] = string(types.KindOf(err))
	}
	w.sink.RecordSpan(w.inner.Name(), attrs, duration, status)

	return output, err
}
