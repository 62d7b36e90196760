// Package telemetry wraps OpenTelemetry SDK initialization, giving the
// gateway a centralized TracerProvider/MeterProvider setup. When
// telemetry is disabled, a noop implementation is used and no external
// connection is made.
package telemetry
