package sandbox

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Executor is the stateless one-shot execution surface. Nothing survives a
// call: files are decoded into memory, the entrypoint runs, and everything
// is discarded.
type Executor struct {
	logger *zap.Logger
	engine *Engine
}

// NewExecutor creates an Executor backed by the given engine.
func NewExecutor(logger *zap.Logger, engine *Engine) *Executor {
	return &Executor{logger: logger, engine: engine}
}

// Run selects an entrypoint by the main/index naming convention (falling
// back to the first supplied file), decodes it and executes it.
func (x *Executor) Run(ctx context.Context, language Language, files []File, stdin *string, args []string, env []EnvVar, limits *Limits) (ExecResult, error) {
	if language.Kind != x.engine.Kind() {
		return ExecResult{}, unsupportedLanguage(language.Kind)
	}
	if len(files) == 0 {
		return ExecResult{}, Internalf("no source files provided")
	}

	entrypoint := selectEntrypoint(files, x.engine.entrypointNames())

	content, err := DecodeContent(entrypoint)
	if err != nil {
		return ExecResult{}, err
	}
	if !utf8.Valid(content) {
		return ExecResult{}, Internalf("entrypoint file %q is not valid UTF-8 source text", entrypoint.Name)
	}

	x.logger.Debug("one-shot execution",
		zap.String("entrypoint", entrypoint.Name),
		zap.Int("files", len(files)))

	return x.engine.Execute(ctx, string(content), args, env, stdin, limits)
}

func selectEntrypoint(files []File, preferred []string) File {
	for _, name := range preferred {
		for i := range files {
			if files[i].Name == name {
				return files[i]
			}
		}
	}
	return files[0]
}
