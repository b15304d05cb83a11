// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// FakeProcessManager is an in-memory process table.
type FakeProcessManager struct {
	mu         sync.Mutex
	nextPID    int
	procs      map[int]string
	terminated []domain.ProcessInfo
}

// NewFakeProcessManager returns an empty process table.
func NewFakeProcessManager() *FakeProcessManager {
	return &FakeProcessManager{nextPID: 1000, procs: make(map[int]string)}
}

// Spawn adds a running process and returns its PID.
func (f *FakeProcessManager) Spawn(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPID++
	f.procs[f.nextPID] = name
	return f.nextPID
}

// List implements domain.ProcessManager.
func (f *FakeProcessManager) List() ([]domain.ProcessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProcessInfo, 0, len(f.procs))
	for pid, name := range f.procs {
		out = append(out, domain.ProcessInfo{PID: pid, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

// Terminate implements domain.ProcessManager.
func (f *FakeProcessManager) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.procs[pid]
	if !ok {
		return domain.ErrProcessNotFound
	}
	delete(f.procs, pid)
	f.terminated = append(f.terminated, domain.ProcessInfo{PID: pid, Name: name})
	return nil
}

// IsRunning reports whether a process with name is in the table.
func (f *FakeProcessManager) IsRunning(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.procs {
		if n == name {
			return true
		}
	}
	return false
}

// Terminated returns every process killed so far.
func (f *FakeProcessManager) Terminated() []domain.ProcessInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ProcessInfo{}, f.terminated...)
}

// FakeFirewallStrategy records rules instead of touching the host firewall.
type FakeFirewallStrategy struct {
	// Label names the backend; empty means "fake".
	Label string
	// FailApplies is how many Apply calls fail before one succeeds.
	FailApplies int

	mu      sync.Mutex
	active  bool
	applies int
	ipv4    []string
	ipv6    []string
}

// Name implements domain.FirewallStrategy.
func (f *FakeFirewallStrategy) Name() string {
	if f.Label == "" {
		return "fake"
	}
	return f.Label
}

// IsAvailable implements domain.FirewallStrategy.
func (f *FakeFirewallStrategy) IsAvailable() bool { return true }

// Apply implements domain.FirewallStrategy.
func (f *FakeFirewallStrategy) Apply(ipv4, ipv6 []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailApplies > 0 {
		f.FailApplies--
		return fmt.Errorf("%s: rule insert failed", f.Name())
	}
	f.active = true
	f.applies++
	f.ipv4 = append([]string{}, ipv4...)
	f.ipv6 = append([]string{}, ipv6...)
	return nil
}

// Remove implements domain.FirewallStrategy.
func (f *FakeFirewallStrategy) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	f.ipv4, f.ipv6 = nil, nil
	return nil
}

// IsActive implements domain.FirewallStrategy.
func (f *FakeFirewallStrategy) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Applies returns how many times rules were installed.
func (f *FakeFirewallStrategy) Applies() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applies
}

// BlockedIPv4 returns the IPv4 endpoints currently blocked.
func (f *FakeFirewallStrategy) BlockedIPv4() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.ipv4...)
}

// FakeCommandRunner records commands and always succeeds.
type FakeCommandRunner struct {
	mu       sync.Mutex
	Commands []string
}

// Run implements infra.CommandRunner.
func (f *FakeCommandRunner) Run(name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, strings.Join(append([]string{name}, args...), " "))
	return nil
}

// Output implements infra.CommandRunner.
func (f *FakeCommandRunner) Output(name string, args ...string) ([]byte, error) {
	return nil, f.Run(name, args...)
}

// BaseHosts is the unmanaged content of a test hosts file.
const BaseHosts = "127.0.0.1\tlocalhost\n::1\tlocalhost\n"

// WriteHostsFile creates a hosts file holding BaseHosts.
func WriteHostsFile(path string) error {
	return os.WriteFile(path, []byte(BaseHosts), 0644)
}

// ReadHostsFile returns the hosts file content, or "" if unreadable.
func ReadHostsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
