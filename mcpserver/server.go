// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// code execution engine as tools. It uses the mark3labs/mcp-go library to
// handle the protocol details and provides a one-shot run_code tool plus the
// session_* tool group for multi-step execution sessions.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/execbox/config"
	"github.com/isdmx/execbox/sandbox"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  *sandbox.Executor
	registry  *sandbox.Registry
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor *sandbox.Executor, registry *sandbox.Registry) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
		registry: registry,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("runtime.language", s.config.Runtime.Language),
		zap.Strings("runtime.interpreters", s.config.Runtime.Interpreters),
		zap.String("runtime.file_extension", s.config.Runtime.FileExtension),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("execbox", "A sandboxed code execution session server")

	// Register the execution and session tools
	s.registerTools()

	return s, nil
}

var fileProperty = map[string]any{
	"type":        "object",
	"description": "One source file with optional transport encoding",
	"properties": map[string]any{
		"name": map[string]any{
			"type":        "string",
			"description": "File name, unique within the call or session",
		},
		"content": map[string]any{
			"type":        "string",
			"description": "File content, raw text or encoded per 'encoding'",
		},
		"encoding": map[string]any{
			"type":        "string",
			"description": "Transport encoding of the content (default utf8)",
			"enum":        []string{"utf8", "base64", "hex"},
		},
	},
	"required": []string{"name", "content"},
}

var limitsProperty = map[string]any{
	"type":        "object",
	"description": "Resource limits. Only time_ms is enforced; other fields are accepted for forward compatibility",
	"properties": map[string]any{
		"time_ms":         map[string]any{"type": "integer", "description": "Wall-clock deadline in milliseconds"},
		"memory_bytes":    map[string]any{"type": "integer"},
		"file_size_bytes": map[string]any{"type": "integer"},
		"max_processes":   map[string]any{"type": "integer"},
	},
}

var runProperties = map[string]any{
	"args": map[string]any{
		"type":        "array",
		"description": "Additional arguments passed to the program",
		"items":       map[string]any{"type": "string"},
	},
	"env": map[string]any{
		"type":        "object",
		"description": "Environment entries layered over the ambient environment",
	},
	"stdin": map[string]any{
		"type":        "string",
		"description": "Standard input content; omitted means stdin stays unconnected",
	},
	"limits": limitsProperty,
}

// registerTools registers the run_code tool and the session tool group
func (s *MCPServer) registerTools() {
	runCodeProps := map[string]any{
		"language": map[string]any{
			"type":        "string",
			"description": "Runtime language kind",
		},
		"version": map[string]any{
			"type":        "string",
			"description": "Requested language version (informational)",
		},
		"files": map[string]any{
			"type":        "array",
			"description": "Source files; the entrypoint is chosen by the main/index convention, else the first file",
			"items":       fileProperty,
		},
	}
	for key, value := range runProperties {
		runCodeProps[key] = value
	}
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "run_code",
		Description: "Execute untrusted code in a sandboxed child process, one-shot",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: runCodeProps,
			Required:   []string{"language", "files"},
		},
	}, s.handleRunCode)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_create",
		Description: "Create an execution session with a private file namespace",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Runtime language kind",
				},
				"version": map[string]any{
					"type":        "string",
					"description": "Requested language version (informational)",
				},
			},
			Required: []string{"language"},
		},
	}, s.handleSessionCreate)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_upload",
		Description: "Upload a file into a session, decoding its transport encoding; re-uploading a name overwrites it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session": sessionProperty(),
				"file":    fileProperty,
			},
			Required: []string{"session", "file"},
		},
	}, s.handleSessionUpload)

	sessionRunProps := map[string]any{
		"session": sessionProperty(),
		"entrypoint": map[string]any{
			"type":        "string",
			"description": "Name of the uploaded file to execute",
		},
	}
	for key, value := range runProperties {
		sessionRunProps[key] = value
	}
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_run",
		Description: "Execute an uploaded entrypoint file within a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: sessionRunProps,
			Required:   []string{"session", "entrypoint"},
		},
	}, s.handleSessionRun)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_download",
		Description: "Download the decoded bytes of a previously uploaded file, base64-encoded",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session": sessionProperty(),
				"path": map[string]any{
					"type":        "string",
					"description": "Name of the uploaded file",
				},
			},
			Required: []string{"session", "path"},
		},
	}, s.handleSessionDownload)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_list_files",
		Description: "List every file name stored in a session (flat namespace, unspecified order)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session": sessionProperty(),
				"dir": map[string]any{
					"type":        "string",
					"description": "Ignored; the namespace is flat",
				},
			},
			Required: []string{"session"},
		},
	}, s.handleSessionListFiles)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_set_working_dir",
		Description: "Record a session's working directory string",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session": sessionProperty(),
				"path": map[string]any{
					"type":        "string",
					"description": "Working directory value to record",
				},
			},
			Required: []string{"session", "path"},
		},
	}, s.handleSessionSetWorkingDir)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_close",
		Description: "Close a session and discard its files; closing an unknown session is not an error",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session": sessionProperty(),
			},
			Required: []string{"session"},
		},
	}, s.handleSessionClose)
}

func sessionProperty() map[string]any {
	return map[string]any{
		"type":        "integer",
		"description": "Session handle returned by session_create",
	}
}

// handleRunCode handles the one-shot run_code tool
func (s *MCPServer) handleRunCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	language, err := parseLanguage(request)
	if err != nil {
		return nil, err
	}
	files, err := parseFiles(request.GetArguments()["files"])
	if err != nil {
		return nil, err
	}
	args, stdin, env, limits, err := parseRunOptions(request)
	if err != nil {
		return nil, err
	}

	s.logger.Info("one-shot execution requested",
		zap.String("language", string(language.Kind)),
		zap.Int("files", len(files)))

	result, execErr := s.executor.Run(ctx, language, files, stdin, args, env, limits)
	if execErr != nil {
		s.logger.Warn("one-shot execution failed", zap.Error(execErr))
		return errorResult(execErr)
	}

	s.logger.Info("one-shot execution completed",
		zap.Int("stdout_len", len(result.Run.Stdout)),
		zap.Int("stderr_len", len(result.Run.Stderr)))

	return textResult(execResultPayload(result))
}

// handleSessionCreate handles the session_create tool
func (s *MCPServer) handleSessionCreate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	language, err := parseLanguage(request)
	if err != nil {
		return nil, err
	}

	handle, createErr := s.registry.Create(language)
	if createErr != nil {
		return errorResult(createErr)
	}

	return textResult(map[string]any{"session": handle})
}

// handleSessionUpload handles the session_upload tool
func (s *MCPServer) handleSessionUpload(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := parseSession(request)
	if err != nil {
		return nil, err
	}
	rawFile, ok := request.GetArguments()["file"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("file parameter must be an object")
	}
	file, err := parseFile(rawFile)
	if err != nil {
		return nil, err
	}

	if uploadErr := s.registry.Upload(handle, file); uploadErr != nil {
		return errorResult(uploadErr)
	}

	return textResult(map[string]any{"uploaded": file.Name})
}

// handleSessionRun handles the session_run tool
func (s *MCPServer) handleSessionRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := parseSession(request)
	if err != nil {
		return nil, err
	}
	entrypoint, err := request.RequireString("entrypoint")
	if err != nil {
		return nil, fmt.Errorf("entrypoint parameter is required: %w", err)
	}
	args, stdin, env, limits, err := parseRunOptions(request)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session execution requested",
		zap.Uint64("session", handle),
		zap.String("entrypoint", entrypoint))

	result, runErr := s.registry.Run(ctx, handle, entrypoint, args, stdin, env, limits)
	if runErr != nil {
		s.logger.Warn("session execution failed",
			zap.Uint64("session", handle),
			zap.Error(runErr))
		return errorResult(runErr)
	}

	return textResult(execResultPayload(result))
}

// handleSessionDownload handles the session_download tool
func (s *MCPServer) handleSessionDownload(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := parseSession(request)
	if err != nil {
		return nil, err
	}
	path, err := request.RequireString("path")
	if err != nil {
		return nil, fmt.Errorf("path parameter is required: %w", err)
	}

	content, downloadErr := s.registry.Download(handle, path)
	if downloadErr != nil {
		return errorResult(downloadErr)
	}

	// Binary-safe transport: decoded bytes cross the boundary as base64
	return textResult(map[string]any{
		"path":    path,
		"content": base64.StdEncoding.EncodeToString(content),
	})
}

// handleSessionListFiles handles the session_list_files tool
func (s *MCPServer) handleSessionListFiles(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := parseSession(request)
	if err != nil {
		return nil, err
	}

	names, listErr := s.registry.ListFiles(handle, request.GetString("dir", ""))
	if listErr != nil {
		return errorResult(listErr)
	}

	return textResult(map[string]any{"files": names})
}

// handleSessionSetWorkingDir handles the session_set_working_dir tool
func (s *MCPServer) handleSessionSetWorkingDir(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := parseSession(request)
	if err != nil {
		return nil, err
	}
	path, err := request.RequireString("path")
	if err != nil {
		return nil, fmt.Errorf("path parameter is required: %w", err)
	}

	if setErr := s.registry.SetWorkingDir(handle, path); setErr != nil {
		return errorResult(setErr)
	}

	return textResult(map[string]any{"working_dir": path})
}

// handleSessionClose handles the session_close tool
func (s *MCPServer) handleSessionClose(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := parseSession(request)
	if err != nil {
		return nil, err
	}

	s.registry.Close(handle)

	return textResult(map[string]any{"closed": true})
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// textResult marshals v and wraps it as a successful tool result
func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}

// errorResult maps an engine failure onto the external error taxonomy and
// renders it as an isError tool result. Engine failures are not protocol
// errors: the tool call itself succeeded.
func errorResult(err error) (*mcp.CallToolResult, error) {
	mapped := sandbox.Wrap(err)

	payload := map[string]any{"kind": string(mapped.Kind)}
	if stage := mapped.FailureStage(); stage != nil {
		// Staged kinds flatten the message into a stage-shaped body
		payload["stage"] = stagePayload(*stage)
	} else if mapped.Message != "" {
		payload["message"] = mapped.Message
	}

	data, encErr := json.Marshal(map[string]any{"error": payload})
	if encErr != nil {
		return nil, fmt.Errorf("failed to encode error result: %w", encErr)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
		IsError: true,
	}, nil
}
