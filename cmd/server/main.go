// Package main is the entry point for the Execbox MCP server.
//
// The Execbox server implements a Model Context Protocol (MCP) server that
// executes untrusted source files in isolated child processes, one language
// kind per instance, with per-invocation wall-clock deadlines and multi-step
// execution sessions. The server supports both stdio and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/execbox/config"
	"github.com/isdmx/execbox/logger"
	"github.com/isdmx/execbox/mcpserver"
	"github.com/isdmx/execbox/sandbox"
)

// newEngine builds the process execution engine from the runtime config
func newEngine(cfg *config.Config, log *zap.Logger) *sandbox.Engine {
	return sandbox.NewEngine(log, &sandbox.Config{
		Kind:          sandbox.LanguageKind(cfg.Runtime.Language),
		Interpreters:  cfg.Runtime.Interpreters,
		FileExtension: cfg.Runtime.FileExtension,
	})
}

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Execution engine, session registry and one-shot executor
			newEngine,
			sandbox.NewRegistry,
			sandbox.NewExecutor,

			// MCP Server
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					// Use fx to run this as a background task
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
