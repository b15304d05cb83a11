package domain

import "errors"

// Configuration errors.
var (
	ErrNotInitialized     = errors.New("config store not initialized")
	ErrAlreadyInitialized = errors.New("config store already initialized")
	ErrCorruptData        = errors.New("config data is corrupt")
	ErrWrongKey           = errors.New("config cannot be decrypted with this machine's key")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrNoMachineID        = errors.New("machine identifier unavailable")
)

// IPC errors.
var (
	ErrMessageTooLarge   = errors.New("ipc message too large")
	ErrMalformedMessage  = errors.New("malformed ipc message")
	ErrDaemonUnavailable = errors.New("daemon is not running")
)

// Enforcement errors.
var (
	ErrListFailed       = errors.New("failed to list processes")
	ErrTerminateFailed  = errors.New("failed to terminate process")
	ErrAccessDenied     = errors.New("access denied")
	ErrProcessNotFound  = errors.New("process not found")
	ErrHostsWriteFailed = errors.New("failed to write hosts file")
	ErrFirewallFailed   = errors.New("firewall operation failed")
)

// Service lifecycle errors.
var (
	ErrInstallFailed       = errors.New("service install failed")
	ErrRemoveFailed        = errors.New("service removal failed")
	ErrControlFailed       = errors.New("service control failed")
	ErrElevationCancelled  = errors.New("authentication cancelled by user")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
