package infra

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/crypto/argon2"

	"github.com/ulrichando/ParentShield/internal/domain"
)

const (
	keySize = 32 // 256-bit AES key

	// appSecret is mixed into the key derivation so the key is specific to this application.
	appSecret = "parentshield-config-v1"
)

// machineIDPaths are stable per-install identifiers readable without root.
// host.HostID is the fallback (it may need root on Linux).
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// MachineKeyProvider implements domain.KeyProvider by deriving the key
// from the device identifier. Nothing is stored on disk.
type MachineKeyProvider struct {
	readID func() (string, error)

	mu  sync.Mutex
	id  string
	key []byte
}

// NewMachineKeyProvider creates a provider bound to this machine.
func NewMachineKeyProvider() *MachineKeyProvider {
	return &MachineKeyProvider{readID: readMachineID}
}

// NewStaticKeyProvider creates a provider for a fixed identifier (for testing).
func NewStaticKeyProvider(machineID string) *MachineKeyProvider {
	return &MachineKeyProvider{readID: func() (string, error) {
		if machineID == "" {
			return "", domain.ErrNoMachineID
		}
		return machineID, nil
	}}
}

// MachineID returns the device identifier.
func (p *MachineKeyProvider) MachineID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machineIDLocked()
}

func (p *MachineKeyProvider) machineIDLocked() (string, error) {
	if p.id != "" {
		return p.id, nil
	}
	id, err := p.readID()
	if err != nil {
		return "", err
	}
	p.id = id
	return id, nil
}

// GetKey derives the encryption key with Argon2id. The result is cached.
func (p *MachineKeyProvider) GetKey() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return p.key, nil
	}
	id, err := p.machineIDLocked()
	if err != nil {
		return nil, err
	}
	p.key = DeriveKey(id)
	return p.key, nil
}

// DeriveKey turns a machine identifier into a 256-bit key.
func DeriveKey(machineID string) []byte {
	return argon2.IDKey([]byte(machineID), []byte(appSecret), 1, 64*1024, 4, keySize)
}

func readMachineID() (string, error) {
	for _, path := range machineIDPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id, err := host.HostID()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNoMachineID, err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.ErrNoMachineID
	}
	return id, nil
}

// Ensure MachineKeyProvider implements domain.KeyProvider.
var _ domain.KeyProvider = (*MachineKeyProvider)(nil)
