// Package log provides the broker's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. The Logger methods format and
// write entries through the configured formatter and outputs; a custom
// slog handler, reachable via (*BaseLogger).Slog(), routes slog records
// through that same formatter/outputs pipeline. This allows adoption of the
// slog ecosystem while keeping consistent output across the codebase.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("server"), log.Str("ns", "default"))
//	l.Info("server started", log.Int("port", 8080))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting JSON
// or text formatting. The slog bridge handler supports redaction and sampling
// via its unexported withRedactions/withSampler helpers.
//
// # Interop
//
// To integrate with libraries expecting the standard "log" package (Pebble,
// notably), use RedirectStdLog. To obtain a *slog.Logger backed by this
// facade directly, call (*BaseLogger).Slog().
package log
