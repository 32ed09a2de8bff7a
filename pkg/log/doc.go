// Package log provides leasedkeyq's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context, backed by a pluggable
// formatter/output pipeline. This keeps consistent output and behavior
// across the codebase without pinning callers to a concrete logger.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("server"), log.Str("queue", "orders"))
//	l.Info("server started", log.Int("port", 8080))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting
// text or JSON formatting.
//
// # Interop
//
// To integrate with libraries expecting the standard library logger, use
// RedirectStdLog. Most code should remain against this facade.
package log
