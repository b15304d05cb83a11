// Package settings loads daemon runtime settings: file paths, loop timing and
// process behavior. The policy document itself lives in the encrypted config
// store; nothing here affects what gets blocked.
package settings

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is the optional YAML settings file.
	DefaultFile = "/etc/parentshield/daemon.yaml"
	// DefaultEnvFile is the optional dotenv override file.
	DefaultEnvFile = "/etc/parentshield/daemon.env"

	envSocketPath      = "PARENTSHIELD_SOCKET_PATH"
	envConfigDir       = "PARENTSHIELD_CONFIG_DIR"
	envHostsPath       = "PARENTSHIELD_HOSTS_PATH"
	envLogPath         = "PARENTSHIELD_LOG_PATH"
	envLogLevel        = "PARENTSHIELD_LOG_LEVEL"
	envEnforceInterval = "PARENTSHIELD_ENFORCE_INTERVAL"
)

// Settings holds daemon runtime configuration.
type Settings struct {
	SocketPath string `yaml:"socket_path"`
	// ConfigDir, when set, bypasses config store directory discovery.
	ConfigDir string `yaml:"config_dir"`
	// HostsPath defaults to the platform hosts file when empty.
	HostsPath string `yaml:"hosts_path"`
	LogPath   string `yaml:"log_path"`
	LogLevel  string `yaml:"log_level"`

	EnforceInterval    time.Duration `yaml:"enforce_interval"`
	AcceptPollInterval time.Duration `yaml:"accept_poll_interval"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`

	IgnoreSignals bool `yaml:"ignore_signals"`
	ActivityLog   bool `yaml:"activity_log"`
}

// DefaultSocketPath returns the well-known control socket for this platform.
func DefaultSocketPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "/var/run/parentshield/daemon.sock"
	case "windows":
		return os.Getenv("ProgramData") + `\ParentShield\daemon.sock`
	default:
		return "/run/parentshield/daemon.sock"
	}
}

// DefaultLogPath returns the daemon log file for this platform.
func DefaultLogPath() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("ProgramData") + `\ParentShield\daemon.log`
	}
	return "/var/log/parentshield/daemon.log"
}

// Default returns settings with every field at its default.
func Default() *Settings {
	return &Settings{
		SocketPath:         DefaultSocketPath(),
		LogPath:            DefaultLogPath(),
		LogLevel:           "info",
		EnforceInterval:    5 * time.Second,
		AcceptPollInterval: 100 * time.Millisecond,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       10 * time.Second,
		IgnoreSignals:      true,
		ActivityLog:        true,
	}
}

// Load builds settings from defaults, then the YAML file, then the dotenv
// file, then the process environment. Missing files are skipped.
func Load(yamlPath, envPath string) (*Settings, error) {
	s := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read settings: %w", err)
		default:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("failed to parse settings %s: %w", yamlPath, err)
			}
		}
	}

	dotenv := map[string]string{}
	if envPath != "" {
		m, err := godotenv.Read(envPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to parse env file %s: %w", envPath, err)
		default:
			dotenv = m
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := s.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadDefault loads from DefaultFile and DefaultEnvFile.
func LoadDefault() (*Settings, error) {
	return Load(DefaultFile, DefaultEnvFile)
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		envSocketPath: &s.SocketPath,
		envConfigDir:  &s.ConfigDir,
		envHostsPath:  &s.HostsPath,
		envLogPath:    &s.LogPath,
		envLogLevel:   &s.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup(envEnforceInterval); ok && v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envEnforceInterval, err)
		}
		s.EnforceInterval = d
	}
	return nil
}

// parseInterval accepts a Go duration ("5s") or a bare number of seconds.
func parseInterval(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks that paths are present and durations are positive.
func (s *Settings) Validate() error {
	if s.SocketPath == "" {
		return errors.New("socket_path must not be empty")
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"enforce_interval", s.EnforceInterval},
		{"accept_poll_interval", s.AcceptPollInterval},
		{"read_timeout", s.ReadTimeout},
		{"write_timeout", s.WriteTimeout},
	}
	for _, f := range durations {
		if f.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", f.name, f.d)
		}
	}
	return nil
}
