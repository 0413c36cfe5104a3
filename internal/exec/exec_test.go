package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRunner_Run(t *testing.T) {
	runner := NewCommandRunner()

	t.Run("should execute a simple command successfully", func(t *testing.T) {
		result, err := runner.Run("echo", []string{"hello world"}, Options{})
		require.NoError(t, err)
		assert.Equal(t, "hello world\n", result.Stdout)
		assert.Empty(t, result.Stderr)
		assert.Equal(t, 0, result.ExitCode)
	})

	t.Run("should capture stderr", func(t *testing.T) {
		result, err := runner.Run("sh", []string{"-c", "echo 'hello stderr' 1>&2"}, Options{})
		require.NoError(t, err)
		assert.Empty(t, result.Stdout)
		assert.Equal(t, "hello stderr\n", result.Stderr)
		assert.Equal(t, 0, result.ExitCode)
	})

	t.Run("should handle non-zero exit codes", func(t *testing.T) {
		result, err := runner.Run("sh", []string{"-c", "exit 42"}, Options{})
		require.NoError(t, err) // We don't expect an error from Run itself
		assert.Equal(t, 42, result.ExitCode)
	})

	t.Run("should pass extra environment to the child", func(t *testing.T) {
		result, err := runner.Run("sh", []string{"-c", "printf '%s' \"$COVMAP_CHILD\""}, Options{
			Env: []string{"COVMAP_CHILD=1"},
		})
		require.NoError(t, err)
		assert.Equal(t, "1", result.Stdout)
	})

	t.Run("should not buffer output when inheriting stdio", func(t *testing.T) {
		result, err := runner.Run("sh", []string{"-c", "echo out; echo err 1>&2"}, Options{Inherit: true})
		require.NoError(t, err)
		assert.Empty(t, result.Stdout)
		assert.Empty(t, result.Stderr)
		assert.Equal(t, 0, result.ExitCode)
	})

	t.Run("should respect the working directory", func(t *testing.T) {
		dir := t.TempDir()
		result, err := runner.Run("pwd", nil, Options{Dir: dir})
		require.NoError(t, err)
		assert.Contains(t, result.Stdout, dir)
	})

	t.Run("should return error for non-existent command", func(t *testing.T) {
		_, err := runner.Run("this_command_does_not_exist_12345", nil, Options{})
		assert.Error(t, err)
	})
}
