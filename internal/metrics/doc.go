// Package metrics exposes Prometheus collectors for the review coordinator.
//
// Collectors are registered on the default registry at package init and are
// served by the daemon's /metrics endpoint. Helpers wrap the label handling
// so call sites stay one line.
package metrics
