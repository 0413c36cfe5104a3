// Package exec runs child commands for coordinated coverage runs. The
// parent sets the environment that tells instrumented children where to
// flush reports and that they must not manage their own cache.
package exec

import (
	"bytes"
	"os"
	"os/exec"
)

// Result holds the outcome of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Options adjusts how a child command runs.
type Options struct {
	// Dir is the working directory; empty inherits the parent's.
	Dir string

	// Env entries appended to the parent environment, "KEY=value" form.
	Env []string

	// Inherit passes the parent's stdio through instead of capturing it.
	// The Result's Stdout/Stderr stay empty then; a coordinated test run
	// wants the child talking to the terminal, not filling a buffer.
	Inherit bool
}

// Runner defines an interface for running child commands. It allows
// mocking in tests.
type Runner interface {
	Run(command string, args []string, opts Options) (*Result, error)
}

// CommandRunner is a concrete implementation of the Runner interface that
// runs actual commands on the host system.
type CommandRunner struct{}

// NewCommandRunner creates a new CommandRunner.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{}
}

// Run executes the given command and returns its result. A non-zero exit
// code is reported in the Result, not as an error; only failures to start
// the command at all (e.g. command not found) return an error.
func (r *CommandRunner) Run(command string, args []string, opts Options) (*Result, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)

	var stdout, stderr bytes.Buffer
	if opts.Inherit {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()

	// A non-zero exit surfaces as *exec.ExitError; anything else means the
	// command never ran and there is no exit code to report.
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, err
		}
	}

	return &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}, nil
}
