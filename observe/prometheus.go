package observe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 Prometheus 指标收集器
// =============================================================================

// PromCollector 把引擎推送的执行指标映射到 Prometheus 指标族。
// 实现 Sink 接口；span 在 Prometheus 中没有对应物，只记 debug 日志。
type PromCollector struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec

	logger *zap.Logger
}

// NewPromCollector 创建指标收集器并注册到给定 Registerer。
// 测试中传入 prometheus.NewRegistry() 避免重复注册冲突。
func NewPromCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *PromCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PromCollector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "primitive_executions_total",
			Help:      "Total number of primitive executions",
		},
		[]string{"primitive", "status"},
	)

	c.executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "primitive_execution_duration_seconds",
			Help:      "Primitive execution duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"primitive"},
	)

	c.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"primitive"},
	)

	c.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"primitive"},
	)

	c.rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of rate limited executions",
		},
		[]string{"primitive"},
	)

	reg.MustRegister(c.executionsTotal, c.executionDuration, c.cacheHits, c.cacheMisses, c.rateLimited)

	logger.Info("prometheus collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordSpan Prometheus 无 span 概念，仅记录 debug 日志
func (c *PromCollector) RecordSpan(name string, attrs map[string]string, duration time.Duration, status string) {
	c.logger.Debug("span recorded",
		zap.String("name", name),
		zap.Duration("duration", duration),
		zap.String("status", status),
	)
}

// IncrCounter 按名称分发到对应指标族
func (c *PromCollector) IncrCounter(name string, tags map[string]string) {
	switch name {
	case MetricExecutions:
		c.executionsTotal.WithLabelValues(tags["primitive"], tags["status"]).Inc()
	case MetricCacheHits:
		c.cacheHits.WithLabelValues(tags["primitive"]).Inc()
	case MetricCacheMisses:
		c.cacheMisses.WithLabelValues(tags["primitive"]).Inc()
	case MetricRateLimited:
		c.rateLimited.WithLabelValues(tags["primitive"]).Inc()
	default:
		c.logger.Debug("unmapped counter", zap.String("name", name))
	}
}

// RecordHistogram 按名称分发到对应指标族
func (c *PromCollector) RecordHistogram(name string, value float64, tags map[string]string) {
	switch name {
	case MetricExecutionDuration:
		c.executionDuration.WithLabelValues(tags["primitive"]).Observe(value)
	default:
		c.logger.Debug("unmapped histogram", zap.String("name", name))
	}
}
