package domain

import "context"

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// List returns every process visible to the caller.
	// Fails with ErrListFailed.
	List() ([]ProcessInfo, error)

	// Terminate kills a process by PID.
	// Fails with ErrTerminateFailed, ErrAccessDenied or ErrProcessNotFound.
	Terminate(pid int) error
}

// HostsManager owns the managed section of the system hosts file.
type HostsManager interface {
	// BlockDomains replaces the managed section so every domain resolves to a null route.
	BlockDomains(domains []string) error

	// UnblockAll removes the managed section.
	UnblockAll() error

	// BlockedDomains returns the domains currently in the managed section.
	BlockedDomains() ([]string, error)
}

// FirewallManager toggles firewall rules that block DNS-over-HTTPS resolvers.
type FirewallManager interface {
	// BlockDoH installs the resolver-endpoint rules where missing. Idempotent.
	BlockDoH() error

	// UnblockDoH removes the rules. Idempotent.
	UnblockDoH() error

	// IsDoHBlocked reports whether the rules are installed on every backend.
	IsDoHBlocked() bool
}

// FirewallStrategy is one platform backend for resolver-endpoint rules.
type FirewallStrategy interface {
	// Name returns strategy identifier (e.g., "iptables", "pf")
	Name() string

	// IsAvailable checks if the backend tool exists on this system
	IsAvailable() bool

	// Apply replaces the strategy's rules with blocks for the given addresses.
	Apply(ipv4, ipv6 []string) error

	// Remove deletes the strategy's rules.
	Remove() error

	// IsActive reports whether the rules are installed.
	IsActive() bool
}

// ConfigStore persists the encrypted, machine-bound AppConfig.
type ConfigStore interface {
	// Exists reports whether a store file is present.
	Exists() bool

	// Initialize creates a new store protected by password.
	// Fails with ErrAlreadyInitialized.
	Initialize(password string) (*AppConfig, error)

	// Load reads and decrypts the document, migrating old schema versions.
	// Fails with ErrNotInitialized, ErrCorruptData or ErrWrongKey.
	Load() (*AppConfig, error)

	// Save encrypts and writes the document, stamping LastModified.
	Save(cfg *AppConfig) error

	// VerifyPassword checks a candidate control password.
	VerifyPassword(candidate string) bool

	// ChangePassword replaces the control password. Fails with ErrInvalidPassword.
	ChangePassword(oldPassword, newPassword string) error

	// MasterPassword returns the deterministic recovery secret.
	MasterPassword() (string, error)

	// ResetWithMasterPassword sets a new control password using the recovery secret.
	// Fails with ErrInvalidPassword.
	ResetWithMasterPassword(master, newPassword string) error

	// Dir returns the resolved store directory.
	Dir() string
}

// KeyProvider abstracts the source of the config encryption key.
type KeyProvider interface {
	// GetKey returns the 256-bit encryption key.
	GetKey() ([]byte, error)

	// MachineID returns the device identifier the key is bound to.
	MachineID() (string, error)
}

// ActivityLog stores enforcement history.
type ActivityLog interface {
	// Record appends an event.
	Record(event ActivityEvent) error

	// Recent returns up to limit events, newest first.
	Recent(limit int) ([]ActivityEvent, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// ServiceManager installs and controls the daemon as an OS-managed service.
type ServiceManager interface {
	// Install registers the service pointing at execPath. Fails with ErrInstallFailed.
	Install(execPath string) error

	// Uninstall stops and unregisters the service. Fails with ErrRemoveFailed.
	Uninstall() error

	// Start starts the service. Fails with ErrControlFailed.
	Start() error

	// Stop stops the service. Fails with ErrControlFailed.
	Stop() error

	// Status queries the service manager.
	Status() ServiceStatus

	// IsInstalled checks if the service definition exists.
	IsInstalled() bool
}

// Enforcer applies the current policy to the platform.
type Enforcer interface {
	// Enforce runs one full pass: hosts, firewall and process termination.
	Enforce(ctx context.Context) (*EnforcementResult, error)

	// ApplyBlocking updates hosts-file and firewall state from the config.
	ApplyBlocking(ctx context.Context) (*EnforcementResult, error)

	// RunBlockingCheck terminates blocked processes and returns them.
	RunBlockingCheck(ctx context.Context) ([]ProcessInfo, error)

	// BlockingActive reports whether the schedule currently enforces.
	BlockingActive(cfg *AppConfig) bool

	// SetFirewall forces DoH suppression on or off.
	SetFirewall(ctx context.Context, enabled bool) error

	// FirewallActive reports whether DoH suppression is installed.
	FirewallActive() bool
}
