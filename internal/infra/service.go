package infra

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/ulrichando/ParentShield/internal/domain"
)

const (
	// ServiceName is the systemd unit name.
	ServiceName = "parentshield"
	// LaunchdLabel is the launchd job label.
	LaunchdLabel = "com.parentshield.daemon"

	systemdUnitPath = "/etc/systemd/system/" + ServiceName + ".service"
	// pkexec reports a dismissed or failed authentication dialog with 126.
	elevationCancelledCode = 126
)

const systemdUnitTemplate = `[Unit]
Description=ParentShield Parental Control Daemon
After=network.target

[Service]
Type=simple
ExecStart={{.ExecutablePath}} daemon
Restart=always
RestartSec=5
User=root

# Create runtime directory for socket
RuntimeDirectory=parentshield
RuntimeDirectoryMode=0755

RefuseManualStop=true

[Install]
WantedBy=multi-user.target
`

type serviceTemplateData struct {
	Label          string
	ExecutablePath string
	LogPath        string
	ErrorLogPath   string
}

func renderTemplate(name, tmplStr string, data serviceTemplateData) ([]byte, error) {
	tmpl, err := template.New(name).Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return buf.Bytes(), nil
}

// privileged runs commands as root, going through an elevation helper
// (pkexec or sudo) when the caller is unprivileged.
type privileged struct {
	cmdRunner CommandRunner
	elevator  string
	isRoot    func() bool
}

func (p *privileged) run(name string, args ...string) error {
	var err error
	if p.isRoot() || p.elevator == "" {
		err = p.cmdRunner.Run(name, args...)
	} else {
		err = p.cmdRunner.Run(p.elevator, append([]string{name}, args...)...)
	}
	if err == nil {
		return nil
	}
	if !p.isRoot() && exitCode(err) == elevationCancelledCode {
		return domain.ErrElevationCancelled
	}
	return err
}

// installFile places content at dest with mode 0644, staging through a temp
// file and an elevated copy when not root.
func (p *privileged) installFile(dest string, content []byte) error {
	if p.isRoot() {
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		return atomicWrite(dest, content, 0644)
	}

	tmp, err := os.CreateTemp("", "parentshield-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return p.run("install", "-m", "0644", tmp.Name(), dest)
}

func (p *privileged) removeFile(path string) error {
	if p.isRoot() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return p.run("rm", "-f", path)
}

// wrapServiceErr tags err with kind unless it is an elevation cancel,
// which callers report distinctly.
func wrapServiceErr(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrElevationCancelled) {
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}

// NewServiceManager returns the service backend for this platform.
func NewServiceManager(logger *zap.Logger) domain.ServiceManager {
	runner := &RealCommandRunner{}
	isRoot := func() bool { return os.Geteuid() == 0 }

	switch runtime.GOOS {
	case "linux":
		return NewSystemdServiceManager(runner, isRoot, systemdUnitPath, logger)
	case "darwin":
		return NewLaunchdServiceManager(runner, isRoot, launchDaemonPlistPath, logger)
	default:
		return &UnsupportedServiceManager{}
	}
}

// SystemdServiceManager implements domain.ServiceManager with a systemd unit.
type SystemdServiceManager struct {
	priv      *privileged
	cmdRunner CommandRunner
	unitPath  string
	logger    *zap.Logger
}

// NewSystemdServiceManager creates a systemd backend writing the unit to unitPath.
func NewSystemdServiceManager(cmdRunner CommandRunner, isRoot func() bool, unitPath string, logger *zap.Logger) *SystemdServiceManager {
	return &SystemdServiceManager{
		priv:      &privileged{cmdRunner: cmdRunner, elevator: "pkexec", isRoot: isRoot},
		cmdRunner: cmdRunner,
		unitPath:  unitPath,
		logger:    logger,
	}
}

// UnitContent renders the unit file for execPath.
func (m *SystemdServiceManager) UnitContent(execPath string) ([]byte, error) {
	return renderTemplate("systemd", systemdUnitTemplate, serviceTemplateData{ExecutablePath: execPath})
}

// Install writes the unit, then enables and starts it.
func (m *SystemdServiceManager) Install(execPath string) error {
	content, err := m.UnitContent(execPath)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInstallFailed, err)
	}
	if err := m.priv.installFile(m.unitPath, content); err != nil {
		return wrapServiceErr(domain.ErrInstallFailed, err)
	}

	steps := [][]string{
		{"daemon-reload"},
		{"enable", ServiceName},
		{"start", ServiceName},
	}
	for _, args := range steps {
		if err := m.priv.run("systemctl", args...); err != nil {
			return wrapServiceErr(domain.ErrInstallFailed, err)
		}
	}

	m.logger.Info("service installed", zap.String("unit", m.unitPath), zap.String("exec", execPath))
	return nil
}

// Uninstall disables the unit and removes it. A running daemon refuses a
// manual stop, so it must be shut down over the control socket first.
func (m *SystemdServiceManager) Uninstall() error {
	_ = m.priv.run("systemctl", "stop", ServiceName)
	_ = m.priv.run("systemctl", "disable", ServiceName)

	if err := m.priv.removeFile(m.unitPath); err != nil {
		return wrapServiceErr(domain.ErrRemoveFailed, err)
	}
	_ = m.priv.run("systemctl", "daemon-reload")

	m.logger.Info("service uninstalled", zap.String("unit", m.unitPath))
	return nil
}

func (m *SystemdServiceManager) Start() error {
	return wrapServiceErr(domain.ErrControlFailed, m.priv.run("systemctl", "start", ServiceName))
}

func (m *SystemdServiceManager) Stop() error {
	return wrapServiceErr(domain.ErrControlFailed, m.priv.run("systemctl", "stop", ServiceName))
}

// Status maps `systemctl is-active` output. is-active exits non-zero for
// anything but active, so stdout is inspected regardless of the error.
func (m *SystemdServiceManager) Status() domain.ServiceStatus {
	out, _ := m.cmdRunner.Output("systemctl", "is-active", ServiceName)
	switch strings.TrimSpace(string(out)) {
	case "active", "activating", "reloading":
		return domain.ServiceRunning
	case "inactive", "failed", "deactivating":
		if !m.IsInstalled() {
			return domain.ServiceNotInstalled
		}
		return domain.ServiceStopped
	}
	if !m.IsInstalled() {
		return domain.ServiceNotInstalled
	}
	return domain.ServiceUnknown
}

func (m *SystemdServiceManager) IsInstalled() bool {
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// UnsupportedServiceManager is used on platforms without a service backend.
type UnsupportedServiceManager struct{}

func (UnsupportedServiceManager) Install(string) error { return domain.ErrUnsupportedPlatform }
func (UnsupportedServiceManager) Uninstall() error { return domain.ErrUnsupportedPlatform }
func (UnsupportedServiceManager) Start() error { return domain.ErrUnsupportedPlatform }
func (UnsupportedServiceManager) Stop() error { return domain.ErrUnsupportedPlatform }
func (UnsupportedServiceManager) IsInstalled() bool { return false }

func (UnsupportedServiceManager) Status() domain.ServiceStatus {
	return domain.ServiceUnknown
}

// Ensure implementations satisfy interfaces
var _ domain.ServiceManager = (*SystemdServiceManager)(nil)
var _ domain.ServiceManager = (*UnsupportedServiceManager)(nil)
