// Package app builds every docrag component from configuration and exposes
// the operations shared by the HTTP server, the MCP server and the CLI.
//
//	a, err := app.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	doc, err := a.IngestFile(ctx, "report.pdf")
//	answer, err := a.Chat(ctx, "What changed in Q3?", "analyst")
package app
