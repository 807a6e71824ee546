// Package shell runs shell command lines as child processes and captures
// their combined output.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/specialistvlad/benchgrid/internal/ctxlog"
)

// DefaultShell interprets command lines passed with -c.
const DefaultShell = "/bin/sh"

// Command describes one child process.
type Command struct {
	// Script is the command line, or the whole script when Stdin is set.
	Script string
	// Shell defaults to DefaultShell.
	Shell string
	// Stdin feeds Script to the shell's standard input instead of -c.
	Stdin bool
	Dir   string
	// Env is the complete environment of the child. A nil Env inherits
	// the parent's environment.
	Env Env
}

// Result is the outcome of a process that was started.
type Result struct {
	Output   []byte
	ExitCode int
	Duration time.Duration
}

// Failed reports a non-zero exit status.
func (r *Result) Failed() bool { return r.ExitCode != 0 }

// Lines splits the output into lines without their terminators.
func (r *Result) Lines() []string {
	out := strings.TrimRight(string(r.Output), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Run starts the command, waits for it and drains all of its output. A
// non-zero exit is reported through Result.ExitCode; the error is reserved
// for processes that could not be run at all.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	sh := cmd.Shell
	if sh == "" {
		sh = DefaultShell
	}
	var c *exec.Cmd
	if cmd.Stdin {
		c = exec.CommandContext(ctx, sh)
		c.Stdin = strings.NewReader(cmd.Script)
	} else {
		c = exec.CommandContext(ctx, sh, "-c", cmd.Script)
	}
	c.Dir = cmd.Dir
	if cmd.Env != nil {
		c.Env = cmd.Env.List()
	}

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	logger.Debug("Starting process.", "shell", sh, "dir", cmd.Dir, "script", cmd.Script)
	start := time.Now()
	err := c.Run()
	res := &Result{Output: out.Bytes(), Duration: time.Since(start)}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %q: %w", cmd.Script, err)
		}
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			res.ExitCode = -1
		}
	}
	logger.Debug("Process finished.", "exit_code", res.ExitCode, "duration", res.Duration, "output_bytes", len(res.Output))
	return res, nil
}

// Output runs the command and returns its output, treating a non-zero exit
// as an error.
func Output(ctx context.Context, cmd Command) (string, error) {
	res, err := Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if res.Failed() {
		return "", fmt.Errorf("%q exited with status %d: %s", cmd.Script, res.ExitCode, strings.TrimSpace(string(res.Output)))
	}
	return string(res.Output), nil
}
