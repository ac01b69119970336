package observe

import "time"

// Metric and counter names emitted by the engine. Sinks may map these onto
// their own metric families.
const (
	MetricExecutions        = "primitive_executions_total"
	MetricExecutionDuration = "primitive_execution_duration_seconds"
	MetricCacheHits         = "cache_hits_total"
	MetricCacheMisses       = "cache_misses_total"
	MetricRateLimited       = "rate_limited_total"
)

// Sink is the narrow metric/trace contract the engine pushes to. The engine
// depends only on this interface, never on a specific collector.
//
// Implementations must be safe for concurrent writers.
type Sink interface {
	// RecordSpan records one finished execution span.
	RecordSpan(name string, attrs map[string]string, duration time.Duration, status string)
	// IncrCounter increments a named counter.
	IncrCounter(name string, tags map[string]string)
	// RecordHistogram records a single histogram observation.
	RecordHistogram(name string, value float64, tags map[string]string)
}

// NopSink discards everything. Used when no sink is configured.
type NopSink struct{}

func (NopSink) RecordSpan(string, map[string]string, time.Duration, string) {}
func (NopSink) IncrCounter(string, map[string]string)                       {}
func (NopSink) RecordHistogram(string, float64, map[string]string)          {}

// Combine fans every record out to all given sinks in order. With zero or
// one sink it returns the trivial equivalent instead of a wrapper.
func Combine(sinks ...Sink) Sink {
	switch len(sinks) {
	case 0:
		return NopSink{}
	case 1:
		return sinks[0]
	}
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) RecordSpan(name string, attrs map[string]string, duration time.Duration, status string) {
	for _, s := range m {
		s.RecordSpan(name, attrs, duration, status)
	}
}

func (m multiSink) IncrCounter(name string, tags map[string]string) {
	for _, s := range m {
		s.IncrCounter(name, tags)
	}
}

func (m multiSink) RecordHistogram(name string, value float64, tags map[string]string) {
	for _, s := range m {
		s.RecordHistogram(name, value, tags)
	}
}
