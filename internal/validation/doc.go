// Package validation derives a single composite quality score from
// heterogeneous sub-metrics using a configured, versioned weight table.
package validation
