package sandbox

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

// Engine tests run real child processes via sh so the spawn, deadline and
// kill paths are exercised without needing a language runtime on the host.
func newShellEngine(t *testing.T, interpreters ...string) *Engine {
	t.Helper()
	if len(interpreters) == 0 {
		interpreters = []string{"sh"}
	}
	return NewEngine(zaptest.NewLogger(t), &Config{
		Kind:          LanguageJavaScript,
		Interpreters:  interpreters,
		FileExtension: ".shx",
	})
}

func encodingPtr(e Encoding) *Encoding { return &e }

func strPtr(s string) *string { return &s }

func u64Ptr(v uint64) *uint64 { return &v }
