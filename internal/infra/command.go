// Package infra implements infrastructure concerns (processes, config store,
// hosts file, firewall, service registration).
package infra

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Run(name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct{}

// Run executes a command and waits for it to complete.
// Stderr is folded into the returned error.
func (r *RealCommandRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return &CommandError{Err: err, Stderr: msg}
		}
		return err
	}
	return nil
}

// Output executes a command and returns its stdout
func (r *RealCommandRunner) Output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// CommandError carries stderr alongside the underlying exec error.
type CommandError struct {
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// exitCode extracts a process exit status from err, or -1.
func exitCode(err error) int {
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}
