// Package telemetry installs OpenTelemetry tracing and metrics for the
// docrag daemon.
//
// Export is off by default. When enabled, spans and metrics go to an OTLP
// collector over gRPC or HTTP; the extractor, embedders, retriever,
// generator and ingestion orchestrator create their spans and instruments
// from the otel globals this package installs.
//
// Tests use NewTestTelemetry to record spans and metrics in memory.
package telemetry
