// Package telemetry wraps OpenTelemetry SDK initialization for traces
// and metrics. Internal use only.
package telemetry
