// Package observe provides the instrumentation wrapper and the metric/trace
// sink contract the engine pushes to.
//
// The engine never depends on a concrete collector: Instrumented talks to
// the Sink interface, with OTelSink (OpenTelemetry providers) and
// PromCollector (Prometheus metric families) as the shipped implementations.
package observe
