package infra

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct {
	selfPID int
}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{selfPID: os.Getpid()}
}

// List returns running processes, excluding the caller itself.
func (pm *ProcessManagerImpl) List() ([]domain.ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrListFailed, err)
	}

	found := make([]domain.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		pid := int(p.Pid)
		if pid == 0 || pid == pm.selfPID {
			continue
		}

		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}

		// Exe needs extra privileges for foreign processes; leave it empty then.
		exe, _ := p.Exe()

		found = append(found, domain.ProcessInfo{PID: pid, Name: name, Path: exe})
	}

	return found, nil
}

// Terminate kills a process by PID using SIGKILL.
func (pm *ProcessManagerImpl) Terminate(pid int) error {
	if pid == pm.selfPID {
		return fmt.Errorf("%w: refusing to terminate self", domain.ErrTerminateFailed)
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return mapProcessError(pid, err)
	}
	if err := p.Kill(); err != nil {
		return mapProcessError(pid, err)
	}
	return nil
}

func mapProcessError(pid int, err error) error {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning),
		errors.Is(err, os.ErrProcessDone),
		errors.Is(err, syscall.ESRCH):
		return fmt.Errorf("%w: pid %d", domain.ErrProcessNotFound, pid)
	case errors.Is(err, process.ErrorNotPermitted),
		errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: pid %d", domain.ErrAccessDenied, pid)
	default:
		return fmt.Errorf("%w: pid %d: %v", domain.ErrTerminateFailed, pid, err)
	}
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
