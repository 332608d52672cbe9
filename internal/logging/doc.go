// Package logging provides file-based structured logging with rotation for
// resumatch. With --debug, logs are written to ~/.resumatch/logs/ as JSON.
//
// The MCP server uses ServeMode, which never writes to stdout or stderr
// because stdio carries the JSON-RPC stream.
package logging
