// Package telemetry implements a privacy-first telemetry client for
// embedding inside host applications.
//
// The client accepts structured event, metric, and log records, scrubs
// them of PII, buffers them in per-signal queues, and delivers batches to
// an OTLP collector or directly to ClickHouse with compression and
// retry. Telemetry is opt-in and silent by contract: after construction,
// no call ever blocks on network I/O or surfaces an error to the host.
package telemetry
