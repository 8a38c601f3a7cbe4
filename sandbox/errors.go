package sandbox

import (
	"errors"
	"fmt"
)

// ErrorKind names one variant of the fixed external error taxonomy.
type ErrorKind string

// The external error taxonomy. CompilationFailed, RuntimeFailed and
// ResourceExceeded are reserved variants kept for interface compatibility;
// the interpreter-only execution path never produces them.
const (
	ErrUnsupportedLanguage ErrorKind = "unsupported-language"
	ErrCompilationFailed   ErrorKind = "compilation-failed"
	ErrRuntimeFailed       ErrorKind = "runtime-failed"
	ErrTimeout             ErrorKind = "timeout"
	ErrResourceExceeded    ErrorKind = "resource-exceeded"
	ErrInternal            ErrorKind = "internal"
)

// Error is the typed failure returned by every engine operation. Stage is
// populated only for the staged kinds. An Error never accompanies a partial
// ExecResult.
type Error struct {
	Kind    ErrorKind
	Message string
	Stage   *StageResult
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Internalf builds an internal engine error carrying a human-readable
// diagnostic.
func Internalf(format string, args ...any) *Error {
	return &Error{Kind: ErrInternal, Message: fmt.Sprintf(format, args...)}
}

func unsupportedLanguage(kind LanguageKind) *Error {
	return &Error{Kind: ErrUnsupportedLanguage, Message: fmt.Sprintf("unsupported language: %s", kind)}
}

func timeoutError() *Error {
	return &Error{Kind: ErrTimeout, Message: "execution timed out"}
}

// Wrap maps any internal failure onto the external taxonomy. Errors already
// carrying a kind pass through unchanged; everything else becomes Internal.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var mapped *Error
	if errors.As(err, &mapped) {
		return mapped
	}
	return &Error{Kind: ErrInternal, Message: err.Error()}
}

// FailureStage flattens the error into the stage-shaped payload the boundary
// uses for the staged kinds. It returns nil for every other kind; those cross
// the boundary as kind plus message only.
func (e *Error) FailureStage() *StageResult {
	if e.Stage != nil {
		return e.Stage
	}
	if e.Kind != ErrCompilationFailed && e.Kind != ErrRuntimeFailed {
		return nil
	}
	exitCode := 1
	return &StageResult{Stderr: e.Message, ExitCode: &exitCode}
}
