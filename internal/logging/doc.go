// Package logging provides structured logging for pairview.
//
// It wraps Go's log/slog JSON handler and adds persistent context
// attributes (component, peer name, doc type) so logs from the host, its
// registry and every viewer peer can be filtered after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	reg := logger.WithComponent("registry")
//	reg.WithPeer("pairview-viewer-invoice").Info("peer spawned", "doc_type", "invoice")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"peer spawned","component":"registry","peer":"pairview-viewer-invoice","doc_type":"invoice"}
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a buffer to
// assert on log lines.
//
// # Thread Safety
//
// [Logger] is safe for concurrent use. Child loggers share the parent's
// handler and file.
package logging
