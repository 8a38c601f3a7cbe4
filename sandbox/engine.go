package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Config holds the runtime parameters of the execution engine.
type Config struct {
	// Kind is the single language kind this engine instance accepts.
	Kind LanguageKind
	// Interpreters are candidate interpreter binaries, tried in order until
	// one spawns.
	Interpreters []string
	// FileExtension is appended to the temporary source artifact and drives
	// the main/index entrypoint naming convention.
	FileExtension string
}

// FileSystem is the seam the engine uses for source artifact I/O.
type FileSystem interface {
	CreateTemp(dir, pattern string) (*os.File, error)
	Remove(name string) error
}

// RealFileSystem implements FileSystem using the host filesystem.
type RealFileSystem struct{}

func (RealFileSystem) CreateTemp(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}

func (RealFileSystem) Remove(name string) error { return os.Remove(name) }

// Engine runs one source unit as a child process with argv/env/stdin wiring
// and an optional wall-clock deadline. Concurrent invocations are
// independent: each one owns its own temporary artifact and child process.
type Engine struct {
	logger *zap.Logger
	config *Config
	fs     FileSystem
}

// EngineOption defines a functional option for Engine
type EngineOption func(*Engine)

// WithFileSystem sets the FileSystem for Engine
func WithFileSystem(fs FileSystem) EngineOption {
	return func(e *Engine) {
		e.fs = fs
	}
}

// NewEngine creates a new Engine with default implementations and optional interfaces
func NewEngine(logger *zap.Logger, config *Config, opts ...EngineOption) *Engine {
	engine := &Engine{
		logger: logger,
		config: config,
		fs:     RealFileSystem{},
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Kind returns the single language kind this engine instance accepts.
func (e *Engine) Kind() LanguageKind { return e.config.Kind }

// entrypointNames are the conventional entrypoint file names, in preference
// order.
func (e *Engine) entrypointNames() []string {
	return []string{"main" + e.config.FileExtension, "index" + e.config.FileExtension}
}

// Execute materializes source as a uniquely named temporary artifact, runs
// the configured interpreter against it and collects the run stage result.
// A non-zero interpreter exit code is not an error; only spawn failures and
// deadline expiry are. The Timeout error never carries a partial result, and
// the artifact is removed on every exit path.
func (e *Engine) Execute(ctx context.Context, source string, args []string, env []EnvVar, stdin *string, limits *Limits) (ExecResult, error) {
	start := time.Now()

	artifact, err := e.fs.CreateTemp("", "execbox-*"+e.config.FileExtension)
	if err != nil {
		return ExecResult{}, Internalf("failed to create source artifact: %v", err)
	}
	artifactPath := artifact.Name()
	defer func() {
		if removeErr := e.fs.Remove(artifactPath); removeErr != nil && !os.IsNotExist(removeErr) {
			e.logger.Warn("failed to remove source artifact",
				zap.String("path", artifactPath),
				zap.Error(removeErr))
		}
	}()

	if _, err = artifact.WriteString(source + "\n"); err != nil {
		artifact.Close()
		return ExecResult{}, Internalf("failed to write source artifact: %v", err)
	}
	if err = artifact.Close(); err != nil {
		return ExecResult{}, Internalf("failed to close source artifact: %v", err)
	}

	runCtx := ctx
	deadlineSet := false
	if limits != nil && limits.TimeMs != nil {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(*limits.TimeMs)*time.Millisecond)
		defer cancel()
		deadlineSet = true
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var runErr error
	spawned := false
	for _, interpreter := range e.config.Interpreters {
		//nolint:gosec // Running the configured interpreter is intended functionality
		cmd := exec.CommandContext(runCtx, interpreter, append([]string{artifactPath}, args...)...)

		// Layer the caller's environment entries over the ambient environment
		cmd.Env = os.Environ()
		for _, kv := range env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", kv.Key, kv.Value))
		}

		// Connect stdin only when the caller supplied it; os/exec writes the
		// content and closes the stream once the reader is drained.
		if stdin != nil {
			cmd.Stdin = strings.NewReader(*stdin)
		}

		stdoutBuf.Reset()
		stderrBuf.Reset()
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf

		// Run the interpreter in its own process group so that a deadline
		// kill also reaps any processes it spawned.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Cancel = func() error {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		cmd.WaitDelay = time.Second

		runErr = cmd.Run()

		var spawnErr *exec.Error
		if errors.As(runErr, &spawnErr) {
			e.logger.Debug("interpreter unavailable, trying next candidate",
				zap.String("interpreter", interpreter),
				zap.Error(runErr))
			continue
		}
		spawned = true
		break
	}
	if !spawned {
		return ExecResult{}, Internalf("no usable interpreter among [%s]: %v",
			strings.Join(e.config.Interpreters, ", "), runErr)
	}

	// CommandContext has already terminated the child when the deadline
	// fired; the timeout error carries no partial result.
	if deadlineSet && runCtx.Err() == context.DeadlineExceeded {
		e.logger.Info("execution timed out",
			zap.Uint64("time_ms", *limits.TimeMs),
			zap.Duration("elapsed", time.Since(start)))
		return ExecResult{}, timeoutError()
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return ExecResult{}, Internalf("failed to execute interpreter: %v", runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	elapsed := uint64(time.Since(start).Milliseconds())
	result := ExecResult{
		Run: StageResult{
			Stdout: strings.ToValidUTF8(stdoutBuf.String(), "�"),
			Stderr: strings.ToValidUTF8(stderrBuf.String(), "�"),
		},
		TimeMs: &elapsed,
	}
	// A negative exit code means the process could not report a status
	if exitCode >= 0 {
		result.Run.ExitCode = &exitCode
	}

	e.logger.Debug("execution completed",
		zap.Int("exit_code", exitCode),
		zap.Uint64("time_ms", elapsed))

	return result, nil
}
