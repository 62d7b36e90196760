// Package metrics provides Prometheus exposition through Collector and
// the per-instance rolling response-time Window, plus a durable JSON
// snapshot through LoadSnapshot/SaveSnapshot, using promauto so the process never has to
// manage its own Registry by hand.
package metrics
