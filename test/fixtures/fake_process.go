package fixtures

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrNoSleepBinary is returned when no sleep binary can be found to copy.
var ErrNoSleepBinary = errors.New("sleep binary not found")

// NamedProcess is a real child process running under a chosen name.
type NamedProcess struct {
	Name string
	cmd  *exec.Cmd
	done chan struct{}
}

// StartNamedProcess copies the system sleep binary into dir as name and
// runs it, so the process table shows a name no other process uses.
func StartNamedProcess(dir, name string) (*NamedProcess, error) {
	if runtime.GOOS == "windows" {
		return nil, ErrNoSleepBinary
	}
	src, err := exec.LookPath("sleep")
	if err != nil {
		return nil, ErrNoSleepBinary
	}

	dst := filepath.Join(dir, name)
	if err := copyExecutable(src, dst); err != nil {
		return nil, err
	}

	cmd := exec.Command(dst, "60")
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &NamedProcess{Name: name, cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// PID returns the child's process id.
func (p *NamedProcess) PID() int {
	return p.cmd.Process.Pid
}

// Exited reports whether the child has exited and been reaped.
func (p *NamedProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Kill stops the child if it is still running.
func (p *NamedProcess) Kill() {
	if !p.Exited() {
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
