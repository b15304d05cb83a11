// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/policy"
	"github.com/ulrichando/ParentShield/internal/schedule"
)

// EnforcerImpl implements domain.Enforcer.
type EnforcerImpl struct {
	store          domain.ConfigStore
	processManager domain.ProcessManager
	hosts          domain.HostsManager
	firewall       domain.FirewallManager
	registry       *policy.Registry
	activity       domain.ActivityLog
	now            func() time.Time
	logger         *zap.Logger

	// mu serializes passes so the periodic loop and control requests do not
	// interleave hosts-file and firewall writes.
	mu sync.Mutex
}

// NewEnforcer creates a new policy enforcer.
func NewEnforcer(
	store domain.ConfigStore,
	pm domain.ProcessManager,
	hosts domain.HostsManager,
	fw domain.FirewallManager,
	registry *policy.Registry,
	logger *zap.Logger,
) *EnforcerImpl {
	return &EnforcerImpl{
		store:          store,
		processManager: pm,
		hosts:          hosts,
		firewall:       fw,
		registry:       registry,
		now:            time.Now,
		logger:         logger,
	}
}

// WithActivityLog records every terminated process to log.
func (e *EnforcerImpl) WithActivityLog(log domain.ActivityLog) *EnforcerImpl {
	e.activity = log
	return e
}

// WithClock overrides the time source used for schedule evaluation.
func (e *EnforcerImpl) WithClock(now func() time.Time) *EnforcerImpl {
	e.now = now
	return e
}

// BlockingActive reports whether the schedule currently enforces.
func (e *EnforcerImpl) BlockingActive(cfg *domain.AppConfig) bool {
	return schedule.IsActive(cfg.Schedules, e.now())
}

// Enforce runs one full pass: hosts, firewall and process termination.
// Only a config load failure is returned as an error; backend failures are
// collected in the result.
func (e *EnforcerImpl) Enforce(ctx context.Context) (*domain.EnforcementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	cfg, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	result := e.newResult(cfg, start)
	if err := e.apply(ctx, cfg, result); err != nil {
		result.Errors = append(result.Errors, err)
	}
	if result.BlockingActive {
		_ = e.check(ctx, cfg, result)
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// ApplyBlocking updates hosts-file and firewall state from the stored config.
func (e *EnforcerImpl) ApplyBlocking(ctx context.Context) (*domain.EnforcementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	cfg, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	result := e.newResult(cfg, start)
	if err := e.apply(ctx, cfg, result); err != nil {
		return result, err
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// RunBlockingCheck terminates blocked processes and returns them.
// Nothing is terminated outside the schedule.
func (e *EnforcerImpl) RunBlockingCheck(ctx context.Context) ([]domain.ProcessInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	result := e.newResult(cfg, e.now())
	if !result.BlockingActive {
		return []domain.ProcessInfo{}, nil
	}
	if err := e.check(ctx, cfg, result); err != nil {
		return nil, err
	}
	return result.Terminated, nil
}

// SetFirewall forces DoH suppression on or off. The next enforcement pass
// reconciles it with the config again.
func (e *EnforcerImpl) SetFirewall(ctx context.Context, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if enabled {
		return e.firewall.BlockDoH()
	}
	return e.firewall.UnblockDoH()
}

// FirewallActive reports whether DoH suppression is installed.
func (e *EnforcerImpl) FirewallActive() bool {
	return e.firewall.IsDoHBlocked()
}

func (e *EnforcerImpl) newResult(cfg *domain.AppConfig, start time.Time) *domain.EnforcementResult {
	return &domain.EnforcementResult{
		BlockingActive: e.BlockingActive(cfg),
		Terminated:     make([]domain.ProcessInfo, 0),
		BlockedDomains: make([]string, 0),
		Errors:         make([]error, 0),
		ExecutedAt:     start,
	}
}

// apply reconciles the hosts file and the firewall with cfg. A hosts-file
// failure is returned; a firewall failure is only recorded.
func (e *EnforcerImpl) apply(ctx context.Context, cfg *domain.AppConfig, result *domain.EnforcementResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var hostsErr error
	if result.BlockingActive {
		domains := EffectiveDomainSet(e.registry, cfg).Sorted()
		if len(domains) == 0 {
			hostsErr = e.hosts.UnblockAll()
		} else {
			hostsErr = e.hosts.BlockDomains(domains)
			if hostsErr == nil {
				result.BlockedDomains = domains
			}
		}
	} else {
		hostsErr = e.hosts.UnblockAll()
	}
	if hostsErr != nil {
		e.logger.Warn("hosts file update failed", zap.Error(hostsErr))
	}

	want := FirewallWanted(cfg, result.BlockingActive)
	if err := e.reconcileFirewall(want); err != nil {
		e.logger.Warn("firewall update failed", zap.Bool("enable", want), zap.Error(err))
		result.Errors = append(result.Errors, err)
	}
	result.FirewallEnabled = e.firewall.IsDoHBlocked()

	return hostsErr
}

// reconcileFirewall retries BlockDoH until every backend is installed.
// UnblockDoH only touches backends that still hold rules.
func (e *EnforcerImpl) reconcileFirewall(want bool) error {
	if !want {
		return e.firewall.UnblockDoH()
	}
	if e.firewall.IsDoHBlocked() {
		return nil
	}
	return e.firewall.BlockDoH()
}

// check terminates every running process that cfg blocks. A process list
// failure is returned; per-process failures are recorded and skipped.
func (e *EnforcerImpl) check(ctx context.Context, cfg *domain.AppConfig, result *domain.EnforcementResult) error {
	procs, err := e.processManager.List()
	if err != nil {
		e.logger.Warn("failed to list processes", zap.Error(err))
		result.Errors = append(result.Errors, err)
		return err
	}

	blocked := EffectiveProcessSet(e.registry, cfg)
	terminated, errs := BlockProcesses(ctx, e.processManager, procs, blocked, cfg, e.logger)
	result.Terminated = terminated
	result.Errors = append(result.Errors, errs...)

	for _, p := range terminated {
		e.record(p)
	}
	return nil
}

func (e *EnforcerImpl) record(p domain.ProcessInfo) {
	if e.activity == nil {
		return
	}
	err := e.activity.Record(domain.ActivityEvent{
		Kind:      domain.ActivityProcessTerminated,
		Target:    p.Name,
		PID:       p.PID,
		Timestamp: e.now(),
	})
	if err != nil {
		e.logger.Warn("failed to record activity", zap.String("process", p.Name), zap.Error(err))
	}
}

// BlockProcesses terminates each process in procs that the matcher blocks.
// A failed termination is logged and skipped; processes that exit on their
// own before termination are ignored.
func BlockProcesses(
	ctx context.Context,
	pm domain.ProcessManager,
	procs []domain.ProcessInfo,
	blocked domain.StringSet,
	cfg *domain.AppConfig,
	logger *zap.Logger,
) ([]domain.ProcessInfo, []error) {
	terminated := make([]domain.ProcessInfo, 0)
	var errs []error

	for _, p := range procs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if !policy.IsProcessBlocked(p.Name, blocked, cfg.AllowedProcesses, cfg.AllowedDomains) {
			continue
		}

		if err := pm.Terminate(p.PID); err != nil {
			if errors.Is(err, domain.ErrProcessNotFound) {
				logger.Debug("process exited before termination", zap.Int("pid", p.PID), zap.String("name", p.Name))
				continue
			}
			logger.Warn("failed to terminate process",
				zap.Int("pid", p.PID),
				zap.String("name", p.Name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s (pid %d): %w", p.Name, p.PID, err))
			continue
		}

		logger.Info("terminated blocked process",
			zap.Int("pid", p.PID),
			zap.String("name", p.Name))
		terminated = append(terminated, p)
	}

	return terminated, errs
}

// EffectiveProcessSet returns the enabled default process lists plus the
// user's blocked processes, minus allowed processes.
func EffectiveProcessSet(reg *policy.Registry, cfg *domain.AppConfig) domain.StringSet {
	out := reg.DefaultProcesses(cfg)
	out.AddAll(cfg.BlockedProcesses.Lowered())
	out.Remove(cfg.AllowedProcesses.Lowered().Sorted()...)
	return out
}

// EffectiveDomainSet returns the enabled default domain lists, plus the
// user's blocked domains when DNS blocking is on, minus anything an allowed
// domain covers. Each blocked domain brings its www. alias unless an
// allowed domain covers the alias.
func EffectiveDomainSet(reg *policy.Registry, cfg *domain.AppConfig) domain.StringSet {
	candidates := reg.DefaultDomains(cfg)
	if cfg.DNSBlocking {
		candidates.AddAll(cfg.BlockedDomains.Lowered())
	}

	allowed := cfg.AllowedDomains.Lowered()
	out := domain.NewStringSet()
	for d := range candidates {
		if !policy.IsDomainBlocked(d, candidates, allowed) {
			continue
		}
		out.Add(d)
		if strings.HasPrefix(d, "www.") {
			continue
		}
		if alias := "www." + d; policy.IsDomainBlocked(alias, candidates, allowed) {
			out.Add(alias)
		}
	}
	return out
}

// FirewallWanted reports whether DoH suppression should be installed.
func FirewallWanted(cfg *domain.AppConfig, blockingActive bool) bool {
	return blockingActive && (cfg.GameBlocking || cfg.AIBlocking || cfg.DNSBlocking)
}

// Ensure EnforcerImpl implements domain.Enforcer.
var _ domain.Enforcer = (*EnforcerImpl)(nil)
