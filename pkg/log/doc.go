// Package log provides gemdrive's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Records are routed through log/slog via
// a bridge handler so formatting and outputs stay consistent regardless of
// whether a record originated from this facade, from slog, or from the
// standard library logger (see RedirectStdLog).
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("pipeline"))
//	l.Info("write committed", log.Str("path", "/notes.txt"), log.Int64("seq", 7))
//
// Use ApplyConfig to build a logger from a declarative Config.
package log
