package infra

import (
	"errors"
	"strconv"
	"strings"
	"sync"
)

// mockCommandRunner records commands and returns canned results keyed by
// the joined command line.
type mockCommandRunner struct {
	mu       sync.Mutex
	commands []string
	errs     map[string]error
	outputs  map[string][]byte
	// runHook, when set, is called for every Run before the canned error lookup.
	runHook func(cmd string) error
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		errs:    make(map[string]error),
		outputs: make(map[string][]byte),
	}
}

func (m *mockCommandRunner) Run(name string, args ...string) error {
	cmd := joinCmd(name, args)
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	hook := m.runHook
	err := m.errs[cmd]
	m.mu.Unlock()
	if hook != nil {
		if herr := hook(cmd); herr != nil {
			return herr
		}
	}
	return err
}

func (m *mockCommandRunner) Output(name string, args ...string) ([]byte, error) {
	cmd := joinCmd(name, args)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return m.outputs[cmd], m.errs[cmd]
}

func (m *mockCommandRunner) ran(cmd string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.commands {
		if c == cmd {
			return true
		}
	}
	return false
}

func (m *mockCommandRunner) count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.commands {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (m *mockCommandRunner) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}

func joinCmd(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// exitError mimics *exec.ExitError's ExitCode method.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "exit status " + strconv.Itoa(e.code) }
func (e *exitError) ExitCode() int { return e.code }

var errCommandFailed = errors.New("command failed")
