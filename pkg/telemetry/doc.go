// Package telemetry provides observability for the update manager: structured
// logging via zerolog, Prometheus metrics, and OpenTelemetry tracing.
//
// The package is wired into update transactions through the engine's Observer
// interface; the engine itself stays free of any telemetry dependency.
//
// # Components
//
//   - Logger - zerolog wrapper with component and run scoping
//   - Metrics - Prometheus collectors for updates, stages, and errors
//   - Tracer - OpenTelemetry tracer with stdout and OTLP exporters
//   - Observer - engine.Observer implementation feeding the metrics
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	logger, err := telemetry.NewLogger(cfg.Logging)
//	metrics, err := telemetry.NewMetrics(cfg.Metrics)
//	tracer, err := telemetry.NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
package telemetry
