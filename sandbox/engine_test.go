package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEngineExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("CapturesStdout", func(t *testing.T) {
		engine := newShellEngine(t)
		result, err := engine.Execute(ctx, `echo hello`, nil, nil, nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "hello\n", result.Run.Stdout)
		assert.Equal(t, "", result.Run.Stderr)
		require.NotNil(t, result.Run.ExitCode)
		assert.Equal(t, 0, *result.Run.ExitCode)
		assert.Nil(t, result.Run.Signal)
		assert.Nil(t, result.Compile)
		assert.Nil(t, result.MemoryBytes)
		require.NotNil(t, result.TimeMs)
	})

	t.Run("CapturesStderrAndExitCode", func(t *testing.T) {
		engine := newShellEngine(t)
		result, err := engine.Execute(ctx, "echo oops 1>&2\nexit 7", nil, nil, nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "oops\n", result.Run.Stderr)
		require.NotNil(t, result.Run.ExitCode)
		assert.Equal(t, 7, *result.Run.ExitCode)
	})

	t.Run("PassesArgs", func(t *testing.T) {
		engine := newShellEngine(t)
		result, err := engine.Execute(ctx, `echo "$1-$2"`, []string{"left", "right"}, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "left-right\n", result.Run.Stdout)
	})

	t.Run("LayersEnvOverAmbient", func(t *testing.T) {
		t.Setenv("EXECBOX_AMBIENT", "kept")
		engine := newShellEngine(t)
		env := []EnvVar{{Key: "EXECBOX_EXTRA", Value: "added"}}
		result, err := engine.Execute(ctx, `echo "$EXECBOX_AMBIENT/$EXECBOX_EXTRA"`, nil, env, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "kept/added\n", result.Run.Stdout)
	})

	t.Run("WritesStdin", func(t *testing.T) {
		engine := newShellEngine(t)
		result, err := engine.Execute(ctx, `cat`, nil, nil, strPtr("line in\n"), nil)
		require.NoError(t, err)
		assert.Equal(t, "line in\n", result.Run.Stdout)
	})

	t.Run("NoStdinLeavesStreamUnconnected", func(t *testing.T) {
		// cat on an unconnected stdin sees end-of-input immediately
		engine := newShellEngine(t)
		result, err := engine.Execute(ctx, `cat`, nil, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "", result.Run.Stdout)
		require.NotNil(t, result.Run.ExitCode)
		assert.Equal(t, 0, *result.Run.ExitCode)
	})

	t.Run("TimeoutKillsProcess", func(t *testing.T) {
		engine := newShellEngine(t)
		limits := &Limits{TimeMs: u64Ptr(100)}

		start := time.Now()
		result, err := engine.Execute(ctx, `sleep 5`, nil, nil, nil, limits)
		elapsed := time.Since(start)

		require.Error(t, err)
		var sbErr *Error
		require.ErrorAs(t, err, &sbErr)
		assert.Equal(t, ErrTimeout, sbErr.Kind)

		// No partial result accompanies a timeout
		assert.Equal(t, ExecResult{}, result)
		// The child was killed, not waited to completion
		assert.Less(t, elapsed, 3*time.Second)
	})

	t.Run("DeadlineNotReached", func(t *testing.T) {
		engine := newShellEngine(t)
		limits := &Limits{TimeMs: u64Ptr(10000)}
		result, err := engine.Execute(ctx, `echo fast`, nil, nil, nil, limits)
		require.NoError(t, err)
		assert.Equal(t, "fast\n", result.Run.Stdout)
	})

	t.Run("UnenforcedLimitsAccepted", func(t *testing.T) {
		engine := newShellEngine(t)
		maxProcesses := uint32(4)
		limits := &Limits{
			MemoryBytes:   u64Ptr(64 << 20),
			FileSizeBytes: u64Ptr(1 << 20),
			MaxProcesses:  &maxProcesses,
		}
		result, err := engine.Execute(ctx, `echo ok`, nil, nil, nil, limits)
		require.NoError(t, err)
		assert.Equal(t, "ok\n", result.Run.Stdout)
	})

	t.Run("FallsBackToNextInterpreter", func(t *testing.T) {
		engine := newShellEngine(t, "execbox-test-no-such-interp", "sh")
		result, err := engine.Execute(ctx, `echo fallback`, nil, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "fallback\n", result.Run.Stdout)
	})

	t.Run("AllInterpretersMissing", func(t *testing.T) {
		engine := newShellEngine(t, "execbox-test-missing-a", "execbox-test-missing-b")
		_, err := engine.Execute(ctx, `echo never`, nil, nil, nil, nil)
		require.Error(t, err)

		var sbErr *Error
		require.ErrorAs(t, err, &sbErr)
		assert.Equal(t, ErrInternal, sbErr.Kind)
		assert.Contains(t, sbErr.Message, "no usable interpreter")
	})

	t.Run("ArtifactRemovedOnEveryPath", func(t *testing.T) {
		// Extension unique to this test so concurrent test binaries sharing
		// the temp dir cannot skew the count
		countArtifacts := func() int {
			matches, globErr := filepath.Glob(filepath.Join(os.TempDir(), "execbox-*.cleanupshx"))
			require.NoError(t, globErr)
			return len(matches)
		}
		before := countArtifacts()

		engine := NewEngine(zaptest.NewLogger(t), &Config{
			Kind:          LanguageJavaScript,
			Interpreters:  []string{"sh"},
			FileExtension: ".cleanupshx",
		})
		_, err := engine.Execute(ctx, `echo done`, nil, nil, nil, nil)
		require.NoError(t, err)

		_, err = engine.Execute(ctx, `exit 3`, nil, nil, nil, nil)
		require.NoError(t, err)

		_, err = engine.Execute(ctx, `sleep 5`, nil, nil, nil, &Limits{TimeMs: u64Ptr(50)})
		require.Error(t, err)

		assert.Equal(t, before, countArtifacts())
	})

	t.Run("ReplacesInvalidOutputBytes", func(t *testing.T) {
		engine := newShellEngine(t)
		result, err := engine.Execute(ctx, `printf 'a\377b\376c'`, nil, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "a�b�c", result.Run.Stdout)
	})
}
