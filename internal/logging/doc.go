// Package logging builds the zap logger shared by docrag's commands and
// components.
//
// Components take a plain *zap.Logger. The commands build it here from the
// logging section of the configuration:
//
//	lcfg, err := logging.FromConfig(cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(lcfg, tel.LoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Output is JSON or console encoded and written to stdout, or to stderr for
// the CLI and the MCP server whose stdout carries results. When a log
// provider is given and OTEL output is enabled, entries are also forwarded
// through the otelzap bridge.
//
// # Correlation
//
// Request, document and persona identifiers travel in the context and are
// attached with For:
//
//	ctx = logging.WithDocumentID(ctx, doc.ID)
//	logging.For(ctx, logger).Warn("chunk embedding failed", zap.Error(err))
//
// Active OpenTelemetry spans add trace_id and span_id.
//
// # Secrets
//
// Provider credentials never belong in logs. The encoder replaces the value
// of any field whose key names a credential (api_key, gemini_key,
// authorization, ...) and any string value that looks like a bearer token
// or a provider API key.
//
// # Sampling
//
// Entries below warn level are sampled per message; warnings and errors
// always pass.
package logging
