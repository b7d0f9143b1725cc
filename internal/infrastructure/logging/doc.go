// Package logging builds the process logger on uber/zap.
//
// Production mode writes JSON, development mode writes colored console
// lines. Output defaults to stderr: with the stdio transport, stdout belongs
// to the MCP client and a stray log line would corrupt the stream.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "debug", Output: "stderr"})
//	logger.Info("server starting", zap.String("transport", "stdio"))
package logging
