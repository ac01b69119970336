package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OTelSink implements Sink on top of the OpenTelemetry API. Spans and
// metrics go to whatever providers the process registered globally
// (see internal/telemetry for SDK bootstrap).
type OTelSink struct {
	tracer oteltrace.Tracer
	meter  metric.Meter
	logger *zap.Logger

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewOTelSink creates a sink bound to the global OTel providers.
func NewOTelSink(logger *zap.Logger) *OTelSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTelSink{
		tracer:     otel.Tracer("primflow"),
		meter:      otel.Meter("primflow"),
		logger:     logger.With(zap.String("component", "otel_sink")),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// RecordSpan emits a span covering the already-finished execution window.
func (s *OTelSink) RecordSpan(name string, attrs map[string]string, duration time.Duration, status string) {
	end := time.Now()
	start := end.Add(-duration)

	_, span := s.tracer.Start(context.Background(), name,
		oteltrace.WithTimestamp(start),
		oteltrace.WithAttributes(toAttributes(attrs)...),
	)
	if status == "error" {
		span.SetStatus(codes.Error, attrs["error.kind"])
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(oteltrace.WithTimestamp(end))
}

func (s *OTelSink) IncrCounter(name string, tags map[string]string) {
	counter, err := s.counter(name)
	if err != nil {
		s.logger.Warn("counter creation failed", zap.String("name", name), zap.Error(err))
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(toAttributes(tags)...))
}

func (s *OTelSink) RecordHistogram(name string, value float64, tags map[string]string) {
	histogram, err := s.histogram(name)
	if err != nil {
		s.logger.Warn("histogram creation failed", zap.String("name", name), zap.Error(err))
		return
	}
	histogram.Record(context.Background(), value, metric.WithAttributes(toAttributes(tags)...))
}

func (s *OTelSink) counter(name string) (metric.Int64Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c, nil
	}
	c, err := s.meter.Int64Counter(name)
	if err != nil {
		return nil, err
	}
	s.counters[name] = c
	return c, nil
}

func (s *OTelSink) histogram(name string) (metric.Float64Histogram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.histograms[name]; ok {
		return h, nil
	}
	h, err := s.meter.Float64Histogram(name)
	if err != nil {
		return nil, err
	}
	s.histograms[name] = h
	return h, nil
}

func toAttributes(tags map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
