// Package main is the entry point for the Execbox MCP server.
//
// See the package documentation in main.go for details on the server's
// architecture and the frameworks it is built on.
package main
