// Package log provides the logging abstraction shared by mulecore packages.
//
// Lifecycle managers, queue managers and stores accept a Logger so that
// embedding applications can route engine diagnostics into their own
// logging pipeline. A zerolog-backed implementation and a no-op logger
// are provided.
//
// # Usage
//
//	logger := log.NewZerologAdapter(os.Stderr, log.ParseLevel("info"), true)
//	logger = logger.With(log.String("component", "queue"))
//	logger.Info("queue opened", log.String("queue", "orders"))
//
// Use the no-op logger in tests:
//
//	logger := log.NewNoopLogger()
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package log
