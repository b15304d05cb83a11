package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
)

// ExecMode represents the privilege level of the current process.
type ExecMode string

const (
	// ExecModeUser runs as the desktop user (control client)
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root (daemon, service management)
	ExecModeSystem ExecMode = "system"
)

const (
	appDirName = "parentshield"

	// ConfigFileName is the encrypted policy document inside the config dir.
	ConfigFileName = "config.enc"
)

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() ExecMode {
	if os.Geteuid() == 0 {
		return ExecModeSystem
	}
	return ExecModeUser
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// SystemConfigDir is the system-wide store location.
func SystemConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if pd := os.Getenv("ProgramData"); pd != "" {
			return filepath.Join(pd, "ParentShield")
		}
		return `C:\ProgramData\ParentShield`
	case "darwin":
		return "/Library/Application Support/ParentShield"
	default:
		return "/etc/parentshield"
	}
}

// ConfigDirResolver picks the config store directory so the privileged
// daemon and the unprivileged client agree on one location.
//
// This is a deployment assumption, not a security boundary: set Override
// (a single well-known path) to bypass the heuristic.
type ConfigDirResolver struct {
	Override string
	IsRoot   bool
	// UserDir is the caller's own per-user config dir.
	UserDir string
	// HomeGlob matches other accounts' per-user config dirs.
	HomeGlob  string
	SystemDir string
}

// NewConfigDirResolver returns a resolver for the current process.
func NewConfigDirResolver(override string) *ConfigDirResolver {
	home := GetRealUserHome()
	return &ConfigDirResolver{
		Override:  override,
		IsRoot:    DetectExecMode() == ExecModeSystem,
		UserDir:   userConfigDir(home),
		HomeGlob:  homeGlob(),
		SystemDir: SystemConfigDir(),
	}
}

// Resolve returns the store directory.
// Order: override, caller's dir if a store exists there, caller's dir if
// unprivileged, another account's dir holding a store, system dir.
func (r *ConfigDirResolver) Resolve() string {
	if r.Override != "" {
		return r.Override
	}

	if r.UserDir != "" && storeExists(r.UserDir) {
		return r.UserDir
	}

	if !r.IsRoot && r.UserDir != "" {
		return r.UserDir
	}

	if r.HomeGlob != "" {
		matches, _ := filepath.Glob(r.HomeGlob)
		sort.Strings(matches)
		for _, dir := range matches {
			if storeExists(dir) {
				return dir
			}
		}
	}

	return r.SystemDir
}

func storeExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

func userConfigDir(home string) string {
	if home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDirName)
	case "windows":
		if ad := os.Getenv("APPDATA"); ad != "" {
			return filepath.Join(ad, appDirName)
		}
		return filepath.Join(home, "AppData", "Roaming", appDirName)
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && os.Getenv("SUDO_USER") == "" {
			return filepath.Join(xdg, appDirName)
		}
		return filepath.Join(home, ".config", appDirName)
	}
}

func homeGlob() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join("/Users", "*", "Library", "Application Support", appDirName)
	case "windows":
		return ""
	default:
		return filepath.Join("/home", "*", ".config", appDirName)
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	// Check if running under sudo
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	// Fall back to default
	home, _ := os.UserHomeDir()
	return home
}
