package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// mockEnforcer implements domain.Enforcer for testing
type mockEnforcer struct {
	mu sync.Mutex

	active      bool
	firewall    bool
	enforceErr  error
	applyErr    error
	checkErr    error
	firewallErr error
	terminated  []domain.ProcessInfo

	enforces int
	applies  int
	checks   int
	calls    []string
}

func (m *mockEnforcer) Enforce(context.Context) (*domain.EnforcementResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enforces++
	m.calls = append(m.calls, "enforce")
	if m.enforceErr != nil {
		return nil, m.enforceErr
	}
	return &domain.EnforcementResult{
		BlockingActive: m.active,
		Terminated:     m.terminated,
		ExecutedAt:     time.Now(),
	}, nil
}

func (m *mockEnforcer) ApplyBlocking(context.Context) (*domain.EnforcementResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applies++
	m.calls = append(m.calls, "apply")
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	return &domain.EnforcementResult{BlockingActive: m.active}, nil
}

func (m *mockEnforcer) RunBlockingCheck(context.Context) ([]domain.ProcessInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks++
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return m.terminated, nil
}

func (m *mockEnforcer) BlockingActive(*domain.AppConfig) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *mockEnforcer) SetFirewall(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.firewallErr != nil {
		return m.firewallErr
	}
	m.firewall = enabled
	return nil
}

func (m *mockEnforcer) FirewallActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.firewall
}

func (m *mockEnforcer) enforceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enforces
}

// mockConfigStore implements domain.ConfigStore for testing
type mockConfigStore struct {
	mu      sync.Mutex
	cfg     *domain.AppConfig
	loadErr error
	saveErr error
	saves   int
	// onSave runs inside Save, after the document is stored.
	onSave func()
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{cfg: domain.NewAppConfig(time.Now())}
}

func (m *mockConfigStore) Exists() bool { return true }

func (m *mockConfigStore) Initialize(string) (*domain.AppConfig, error) {
	return nil, domain.ErrAlreadyInitialized
}

func (m *mockConfigStore) Load() (*domain.AppConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c := *m.cfg
	return &c, nil
}

func (m *mockConfigStore) Save(cfg *domain.AppConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	c := *cfg
	m.cfg = &c
	m.saves++
	if m.onSave != nil {
		m.onSave()
	}
	return nil
}

func (m *mockConfigStore) stored() domain.AppConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.cfg
}

func (m *mockConfigStore) VerifyPassword(string) bool { return false }
func (m *mockConfigStore) ChangePassword(string, string) error { return nil }
func (m *mockConfigStore) MasterPassword() (string, error) { return "", nil }
func (m *mockConfigStore) ResetWithMasterPassword(string, string) error { return nil }
func (m *mockConfigStore) Dir() string { return "" }

// mockActivityLog implements domain.ActivityLog for testing
type mockActivityLog struct {
	events    []domain.ActivityEvent
	lastLimit int
	err       error
}

func (m *mockActivityLog) Record(e domain.ActivityEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *mockActivityLog) Recent(limit int) ([]domain.ActivityEvent, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.events) {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *mockActivityLog) Close() error { return nil }
