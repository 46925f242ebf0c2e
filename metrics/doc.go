// Package metrics defines the Prometheus collectors recall exports.
//
// Collectors are package-level and usable before registration; call Register
// once from main to expose them on the default registry.
package metrics
