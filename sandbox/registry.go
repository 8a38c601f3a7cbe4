package sandbox

import (
	"context"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
)

// session is the per-handle state exclusively owned by the Registry. The
// file table maps names to decoded bytes; the namespace is flat, not
// hierarchical.
type session struct {
	language   Language
	mu         sync.RWMutex
	files      map[string][]byte
	workingDir string
}

// Registry is the process-wide table of live execution sessions. The handle
// map is guarded by its own lock and each session's file table by a
// per-session lock, so operations on distinct sessions never block each
// other. The engine always runs outside both locks.
type Registry struct {
	logger   *zap.Logger
	engine   *Engine
	mu       sync.RWMutex
	sessions map[uint64]*session
	nextID   uint64
}

// NewRegistry creates a Registry backed by the given engine.
func NewRegistry(logger *zap.Logger, engine *Engine) *Registry {
	return &Registry{
		logger:   logger,
		engine:   engine,
		sessions: make(map[uint64]*session),
		nextID:   1,
	}
}

// Create allocates a new empty session and returns its handle. It fails when
// language.Kind is not the kind this engine instance supports.
func (r *Registry) Create(language Language) (uint64, error) {
	if language.Kind != r.engine.Kind() {
		return 0, unsupportedLanguage(language.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Handles are never reused, even after Close, so a stale handle can
	// never alias a newer session.
	handle := r.nextID
	r.nextID++
	r.sessions[handle] = &session{
		language:   language,
		files:      make(map[string][]byte),
		workingDir: "/",
	}

	r.logger.Info("session created",
		zap.Uint64("session", handle),
		zap.String("language", string(language.Kind)))

	return handle, nil
}

func (r *Registry) lookup(handle uint64) (*session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[handle]
	if !ok {
		return nil, Internalf("session %d not found", handle)
	}
	return s, nil
}

// Upload decodes file.Content according to its declared encoding and inserts
// or replaces the entry under file.Name. Re-uploading a name overwrites the
// prior content.
func (r *Registry) Upload(handle uint64, file File) error {
	s, err := r.lookup(handle)
	if err != nil {
		return err
	}

	content, err := DecodeContent(file)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.files[file.Name] = content
	s.mu.Unlock()

	return nil
}

// Run executes the named entrypoint from the session's file table. The
// stored bytes must be valid UTF-8 source text. The engine is invoked with a
// copy of the content outside all locks, so a long run never blocks other
// sessions and a concurrent Close cannot leave it inconsistent.
func (r *Registry) Run(ctx context.Context, handle uint64, entrypoint string, args []string, stdin *string, env []EnvVar, limits *Limits) (ExecResult, error) {
	s, err := r.lookup(handle)
	if err != nil {
		return ExecResult{}, err
	}

	s.mu.RLock()
	content, ok := s.files[entrypoint]
	s.mu.RUnlock()
	if !ok {
		return ExecResult{}, Internalf("entrypoint file %q not found", entrypoint)
	}
	if !utf8.Valid(content) {
		return ExecResult{}, Internalf("entrypoint file %q is not valid UTF-8 source text", entrypoint)
	}

	r.logger.Debug("session run",
		zap.Uint64("session", handle),
		zap.String("entrypoint", entrypoint))

	return r.engine.Execute(ctx, string(content), args, env, stdin, limits)
}

// Download returns the exact decoded bytes previously stored under path.
func (r *Registry) Download(handle uint64, path string) ([]byte, error) {
	s, err := r.lookup(handle)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.files[path]
	if !ok {
		return nil, Internalf("file %q not found", path)
	}
	return append([]byte(nil), content...), nil
}

// ListFiles returns every file name currently stored in the session. The
// namespace is flat, so the dir argument is ignored and the returned order
// is unspecified.
func (r *Registry) ListFiles(handle uint64, _ string) ([]string, error) {
	s, err := r.lookup(handle)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names, nil
}

// SetWorkingDir records the session's working directory string. The value is
// informational session state; it does not scope where entrypoints execute.
func (r *Registry) SetWorkingDir(handle uint64, path string) error {
	s, err := r.lookup(handle)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.workingDir = path
	s.mu.Unlock()

	return nil
}

// WorkingDir returns the session's recorded working directory string.
func (r *Registry) WorkingDir(handle uint64) (string, error) {
	s, err := r.lookup(handle)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.workingDir, nil
}

// Close removes the session and all its file content. Unlike every other
// operation it is idempotent: closing an unknown or already-closed handle is
// not an error, so callers can clean up best-effort.
func (r *Registry) Close(handle uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[handle]; !ok {
		return
	}
	delete(r.sessions, handle)

	r.logger.Info("session closed", zap.Uint64("session", handle))
}
