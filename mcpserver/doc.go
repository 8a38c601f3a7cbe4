// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// sandboxed code execution engine as tools: run_code for one-shot execution
// and the session_* group (create, upload, run, download, list_files,
// set_working_dir, close) for multi-step sessions. It uses the
// mark3labs/mcp-go library to handle the protocol details.
//
// Engine failures are reported as isError tool results carrying the fixed
// error taxonomy (kind, message, optional stage payload); protocol errors
// are reserved for malformed tool calls.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, executor, registry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
