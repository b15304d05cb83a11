package infra

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/schedule"
)

const (
	configLockName = ".config.lock"

	// On-disk layout: magic | format | nonce | AES-256-GCM ciphertext.
	// The header is authenticated as additional data.
	storeMagic   = "PSHD"
	gcmNonceSize = 12

	masterSecret = "parentshield-recovery-v1"
)

const storeFormat byte = 1

// ConfigStoreImpl implements domain.ConfigStore as a single encrypted file.
// The key comes from the KeyProvider (machine-bound), never from the password.
type ConfigStoreImpl struct {
	dir      string
	path     string
	keys     domain.KeyProvider
	logger   *zap.Logger
	now      func() time.Time
	hashCost int

	mu sync.Mutex
}

// NewConfigStore creates a store rooted at dir.
func NewConfigStore(dir string, keys domain.KeyProvider, logger *zap.Logger) *ConfigStoreImpl {
	return &ConfigStoreImpl{
		dir:      dir,
		path:     filepath.Join(dir, ConfigFileName),
		keys:     keys,
		logger:   logger,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// WithClock overrides the time source (for testing).
func (s *ConfigStoreImpl) WithClock(now func() time.Time) *ConfigStoreImpl {
	s.now = now
	return s
}

// WithHashCost overrides the bcrypt cost (for testing).
func (s *ConfigStoreImpl) WithHashCost(cost int) *ConfigStoreImpl {
	s.hashCost = cost
	return s
}

// Dir returns the store directory.
func (s *ConfigStoreImpl) Dir() string {
	return s.dir
}

// Path returns the encrypted file path.
func (s *ConfigStoreImpl) Path() string {
	return s.path
}

// Exists reports whether the store file is present.
func (s *ConfigStoreImpl) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Initialize creates a new store protected by password.
func (s *ConfigStoreImpl) Initialize(password string) (*domain.AppConfig, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password must not be empty", domain.ErrInvalidPassword)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer lock.unlock()

	if s.Exists() {
		return nil, domain.ErrAlreadyInitialized
	}

	cfg := domain.NewAppConfig(s.now())
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	cfg.PasswordHash = hash

	if err := s.write(cfg); err != nil {
		return nil, err
	}

	s.logger.Info("config store initialized",
		zap.String("dir", s.dir),
		zap.String("installation_id", cfg.InstallationID))
	return cfg, nil
}

// Load reads the document. Older schema versions are migrated and saved immediately.
func (s *ConfigStoreImpl) Load() (*domain.AppConfig, error) {
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}
	if cfg.Version >= domain.ConfigVersion {
		return cfg, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer lock.unlock()

	// Another writer may have migrated it meanwhile.
	cfg, err = s.read()
	if err != nil {
		return nil, err
	}
	if from := cfg.Version; migrate(cfg, s.now()) {
		if err := s.write(cfg); err != nil {
			return nil, fmt.Errorf("failed to persist migrated config: %w", err)
		}
		s.logger.Info("config migrated",
			zap.Int("from_version", from),
			zap.Int("to_version", cfg.Version))
	}
	return cfg, nil
}

// Save encrypts and writes cfg, stamping LastModified. Malformed schedule
// entries are rejected before anything is written.
// Installation identity and version are taken from disk when they exist, so
// a caller cannot rewrite them.
func (s *ConfigStoreImpl) Save(cfg *domain.AppConfig) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	for _, e := range cfg.Schedules {
		if err := schedule.Validate(e); err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.lock()
	if err != nil {
		return err
	}
	defer lock.unlock()

	existing, err := s.read()
	switch {
	case err == nil:
		if existing.InstallationID != "" {
			cfg.InstallationID = existing.InstallationID
		}
		if existing.InstallationTimestamp != 0 {
			cfg.InstallationTimestamp = existing.InstallationTimestamp
		}
		if existing.Version > cfg.Version {
			cfg.Version = existing.Version
		}
	case errors.Is(err, domain.ErrNotInitialized):
	default:
		return err
	}

	migrate(cfg, s.now())
	return s.write(cfg)
}

// VerifyPassword checks a candidate control password. Any load failure is a mismatch.
func (s *ConfigStoreImpl) VerifyPassword(candidate string) bool {
	cfg, err := s.Load()
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(candidate)) == nil
}

// ChangePassword replaces the control password after checking the old one.
func (s *ConfigStoreImpl) ChangePassword(oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password must not be empty", domain.ErrInvalidPassword)
	}

	return s.update(func(cfg *domain.AppConfig) error {
		if bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(oldPassword)) != nil {
			return domain.ErrInvalidPassword
		}
		hash, err := s.hashPassword(newPassword)
		if err != nil {
			return err
		}
		cfg.PasswordHash = hash
		s.logger.Info("control password changed")
		return nil
	})
}

// MasterPassword returns the recovery secret for this install.
func (s *ConfigStoreImpl) MasterPassword() (string, error) {
	cfg, err := s.Load()
	if err != nil {
		return "", err
	}
	id, err := s.keys.MachineID()
	if err != nil {
		return "", err
	}
	return DeriveMasterPassword(id, cfg.InstallationTimestamp), nil
}

// ResetWithMasterPassword sets a new control password if master is correct.
func (s *ConfigStoreImpl) ResetWithMasterPassword(master, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password must not be empty", domain.ErrInvalidPassword)
	}
	id, err := s.keys.MachineID()
	if err != nil {
		return err
	}

	return s.update(func(cfg *domain.AppConfig) error {
		expected := normalizeMasterPassword(DeriveMasterPassword(id, cfg.InstallationTimestamp))
		candidate := normalizeMasterPassword(master)
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) != 1 {
			return domain.ErrInvalidPassword
		}
		hash, err := s.hashPassword(newPassword)
		if err != nil {
			return err
		}
		cfg.PasswordHash = hash
		s.logger.Warn("control password reset with master password")
		return nil
	})
}

// update runs fn on the current document under lock and saves the result.
// Nothing is written when fn fails.
func (s *ConfigStoreImpl) update(fn func(cfg *domain.AppConfig) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.lock()
	if err != nil {
		return err
	}
	defer lock.unlock()

	cfg, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	migrate(cfg, s.now())
	return s.write(cfg)
}

func (s *ConfigStoreImpl) lock() (*fileLock, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(s.dir, configLockName)
	lock, err := lockFile(path)
	if err != nil {
		return nil, err
	}
	// The daemon and the desktop user share this directory.
	if err := matchOwner(path, s.dir); err != nil {
		lock.unlock()
		return nil, fmt.Errorf("failed to set lock file owner: %w", err)
	}
	return lock, nil
}

// read loads and decrypts without migrating. Writers replace the file by
// rename, so readers never see a partial document and need no lock.
func (s *ConfigStoreImpl) read() (*domain.AppConfig, error) {
	blob, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	plain, err := s.decrypt(blob)
	if err != nil {
		return nil, err
	}

	var cfg domain.AppConfig
	if err := json.Unmarshal(plain, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptData, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

func (s *ConfigStoreImpl) write(cfg *domain.AppConfig) error {
	cfg.LastModified = s.now().UTC()
	cfg.Normalize()

	plain, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	blob, err := s.encrypt(plain)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := atomicWrite(s.path, blob, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (s *ConfigStoreImpl) aead() (cipher.AEAD, error) {
	key, err := s.keys.GetKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func storeHeader() []byte {
	return append([]byte(storeMagic), storeFormat)
}

func (s *ConfigStoreImpl) encrypt(plain []byte) ([]byte, error) {
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	header := storeHeader()
	out := make([]byte, 0, len(header)+len(nonce)+len(plain)+gcm.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plain, header), nil
}

func (s *ConfigStoreImpl) decrypt(blob []byte) ([]byte, error) {
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}

	header := storeHeader()
	if len(blob) < len(header)+gcmNonceSize+gcm.Overhead() || !bytes.Equal(blob[:len(header)], header) {
		return nil, domain.ErrCorruptData
	}
	nonce := blob[len(header) : len(header)+gcmNonceSize]
	plain, err := gcm.Open(nil, nonce, blob[len(header)+gcmNonceSize:], header)
	if err != nil {
		// GCM cannot tell a foreign key from tampering; both mean this machine cannot read it.
		return nil, domain.ErrWrongKey
	}
	return plain, nil
}

func (s *ConfigStoreImpl) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPassword, err)
	}
	return string(hash), nil
}

// migrate upgrades cfg to the current schema in memory. Returns true if anything changed.
func migrate(cfg *domain.AppConfig, now time.Time) bool {
	if cfg.Version >= domain.ConfigVersion {
		return false
	}

	// v1 -> v2: browser toggle, theme and schedule ids were introduced.
	if cfg.Version < 2 {
		if cfg.Theme == "" {
			cfg.Theme = "system"
		}
		for i := range cfg.Schedules {
			if cfg.Schedules[i].ID == "" {
				cfg.Schedules[i].ID = uuid.NewString()
			}
		}
	}
	if cfg.InstallationID == "" {
		cfg.InstallationID = uuid.NewString()
	}
	if cfg.InstallationTimestamp == 0 {
		cfg.InstallationTimestamp = now.Unix()
	}

	cfg.Version = domain.ConfigVersion
	return true
}

// DeriveMasterPassword computes the recovery secret from the device
// identifier and the installation timestamp. Format: six groups of four
// base32 characters separated by dashes.
func DeriveMasterPassword(machineID string, installedAt int64) string {
	mac := hmac.New(sha256.New, []byte(masterSecret))
	fmt.Fprintf(mac, "%s:%d", machineID, installedAt)
	sum := mac.Sum(nil)

	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:15])
	groups := make([]string, 0, len(enc)/4)
	for i := 0; i < len(enc); i += 4 {
		groups = append(groups, enc[i:i+4])
	}
	return strings.Join(groups, "-")
}

// normalizeMasterPassword drops whitespace and dashes and uppercases.
func normalizeMasterPassword(s string) string {
	s = strings.ReplaceAll(strings.Join(strings.Fields(s), ""), "-", "")
	return strings.ToUpper(s)
}

// Ensure ConfigStoreImpl implements domain.ConfigStore.
var _ domain.ConfigStore = (*ConfigStoreImpl)(nil)
