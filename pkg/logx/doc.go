// Package logx is forumpulse's structured logging layer on top of zerolog.
//
// It exposes a small Logger value with explicit Field helpers and a Service
// that owns the sinks (console, file, rate-limited chat fanout) and can swap
// them live on config reload. Loggers created from the Service stay "live"
// across Apply() calls; the zero Logger is a safe no-op.
package logx
