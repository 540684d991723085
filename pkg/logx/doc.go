// Package logx provides a small structured logging layer over zerolog.
//
// It exposes a value-type Logger with variadic Field helpers and a Service
// that owns the configured sinks (console, file) and can swap them at
// runtime via Apply without invalidating existing Logger values.
package logx
