// Package sandbox provides sandboxed code execution sessions.
//
// The sandbox package implements the execution engine for running untrusted
// source files in isolated child processes. It decodes transport-encoded file
// content, enforces per-invocation wall-clock deadlines with guaranteed
// process termination, and tracks multi-step sessions that each own a private
// file namespace.
//
// Usage:
//
//	engine := sandbox.NewEngine(logger, &sandbox.Config{
//	    Kind:          sandbox.LanguageJavaScript,
//	    Interpreters:  []string{"node", "nodejs"},
//	    FileExtension: ".js",
//	})
//	registry := sandbox.NewRegistry(logger, engine)
//	handle, err := registry.Create(sandbox.Language{Kind: sandbox.LanguageJavaScript})
//	err = registry.Upload(handle, sandbox.File{Name: "main.js", Content: code})
//	result, err := registry.Run(ctx, handle, "main.js", nil, nil, nil, nil)
package sandbox
