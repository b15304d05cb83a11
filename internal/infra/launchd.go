package infra

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// LaunchDaemon plist template (runs as root)
const launchDaemonTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <true/>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ThrottleInterval</key>
    <integer>5</integer>
</dict>
</plist>`

const (
	launchDaemonPlistPath = "/Library/LaunchDaemons/" + LaunchdLabel + ".plist"
	launchdLogDir         = "/var/log/parentshield"
)

// LaunchdServiceManager implements domain.ServiceManager with a LaunchDaemon.
type LaunchdServiceManager struct {
	priv      *privileged
	cmdRunner CommandRunner
	plistPath string
	logger    *zap.Logger
}

// NewLaunchdServiceManager creates a launchd backend writing the plist to plistPath.
func NewLaunchdServiceManager(cmdRunner CommandRunner, isRoot func() bool, plistPath string, logger *zap.Logger) *LaunchdServiceManager {
	return &LaunchdServiceManager{
		priv:      &privileged{cmdRunner: cmdRunner, elevator: "sudo", isRoot: isRoot},
		cmdRunner: cmdRunner,
		plistPath: plistPath,
		logger:    logger,
	}
}

// PlistContent renders the plist for execPath.
func (m *LaunchdServiceManager) PlistContent(execPath string) ([]byte, error) {
	return renderTemplate("plist", launchDaemonTemplate, serviceTemplateData{
		Label:          LaunchdLabel,
		ExecutablePath: execPath,
		LogPath:        launchdLogDir + "/stdout.log",
		ErrorLogPath:   launchdLogDir + "/stderr.log",
	})
}

// NeedsUpdate checks if plist exists but has different content than expected.
func (m *LaunchdServiceManager) NeedsUpdate(execPath string) bool {
	if !m.IsInstalled() {
		return false
	}
	current, err := os.ReadFile(m.plistPath)
	if err != nil {
		return true
	}
	expected, err := m.PlistContent(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

// Install writes the plist and loads it. An existing job is unloaded first
// so a changed executable path takes effect.
func (m *LaunchdServiceManager) Install(execPath string) error {
	content, err := m.PlistContent(execPath)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInstallFailed, err)
	}

	if m.IsInstalled() {
		_ = m.unload()
	}
	if err := m.priv.installFile(m.plistPath, content); err != nil {
		return wrapServiceErr(domain.ErrInstallFailed, err)
	}
	if err := m.load(); err != nil {
		return wrapServiceErr(domain.ErrInstallFailed, err)
	}

	m.logger.Info("service installed", zap.String("plist", m.plistPath), zap.String("exec", execPath))
	return nil
}

// Uninstall unloads and removes the plist.
func (m *LaunchdServiceManager) Uninstall() error {
	// Unload first (ignore errors if not loaded)
	_ = m.unload()

	if err := m.priv.removeFile(m.plistPath); err != nil {
		return wrapServiceErr(domain.ErrRemoveFailed, err)
	}
	m.logger.Info("service uninstalled", zap.String("plist", m.plistPath))
	return nil
}

// Start kicks the loaded job.
func (m *LaunchdServiceManager) Start() error {
	return wrapServiceErr(domain.ErrControlFailed, m.priv.run("launchctl", "start", LaunchdLabel))
}

// Stop asks launchd to stop the job. KeepAlive restarts it, so the daemon
// only stays down after Uninstall.
func (m *LaunchdServiceManager) Stop() error {
	return wrapServiceErr(domain.ErrControlFailed, m.priv.run("launchctl", "stop", LaunchdLabel))
}

// Status parses `launchctl list <label>`, whose output carries a "PID" key
// only while the job is running.
func (m *LaunchdServiceManager) Status() domain.ServiceStatus {
	if !m.IsInstalled() {
		return domain.ServiceNotInstalled
	}
	out, err := m.cmdRunner.Output("launchctl", "list", LaunchdLabel)
	if err != nil {
		return domain.ServiceStopped
	}
	if strings.Contains(string(out), `"PID"`) {
		return domain.ServiceRunning
	}
	return domain.ServiceStopped
}

// IsInstalled checks if plist is installed.
func (m *LaunchdServiceManager) IsInstalled() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

// load loads the plist using launchctl.
// Note: `launchctl load` is deprecated but still works on macOS.
func (m *LaunchdServiceManager) load() error {
	return m.priv.run("launchctl", "load", "-w", m.plistPath)
}

func (m *LaunchdServiceManager) unload() error {
	return m.priv.run("launchctl", "unload", m.plistPath)
}

// Ensure LaunchdServiceManager implements domain.ServiceManager.
var _ domain.ServiceManager = (*LaunchdServiceManager)(nil)
