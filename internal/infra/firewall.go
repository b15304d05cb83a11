package infra

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/policy"
)

const (
	iptablesChain  = "PARENTSHIELD_DOH"
	pfAnchor       = "com.apple/parentshield.doh"
	pfTable        = "parentshield_doh"
	netshRuleName  = "ParentShield DoH Block"
	dohTLSPort     = "443"
	dotPort        = "853"
	pfRulesFileDir = "/var/run"
)

// IptablesStrategy manages a dedicated OUTPUT chain via iptables or ip6tables.
type IptablesStrategy struct {
	binary    string
	ipv6      bool
	cmdRunner CommandRunner
	lookPath  func(string) (string, error)
}

// NewIptablesStrategy creates the IPv4 strategy.
func NewIptablesStrategy(cmdRunner CommandRunner) *IptablesStrategy {
	return &IptablesStrategy{binary: "iptables", cmdRunner: cmdRunner, lookPath: exec.LookPath}
}

// NewIp6tablesStrategy creates the IPv6 strategy.
func NewIp6tablesStrategy(cmdRunner CommandRunner) *IptablesStrategy {
	return &IptablesStrategy{binary: "ip6tables", ipv6: true, cmdRunner: cmdRunner, lookPath: exec.LookPath}
}

func (s *IptablesStrategy) Name() string {
	return s.binary
}

func (s *IptablesStrategy) IsAvailable() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	_, err := s.lookPath(s.binary)
	return err == nil
}

func (s *IptablesStrategy) Apply(ipv4, ipv6 []string) error {
	ips := ipv4
	if s.ipv6 {
		ips = ipv6
	}

	// -N fails when the chain already exists; the flush below handles both cases.
	_ = s.cmdRunner.Run(s.binary, "-N", iptablesChain)
	if err := s.cmdRunner.Run(s.binary, "-F", iptablesChain); err != nil {
		return fmt.Errorf("%s flush: %w", s.binary, err)
	}

	for _, ip := range ips {
		rules := [][]string{
			{"-A", iptablesChain, "-d", ip, "-p", "tcp", "--dport", dohTLSPort, "-j", "REJECT"},
			{"-A", iptablesChain, "-d", ip, "-p", "udp", "--dport", dohTLSPort, "-j", "REJECT"},
			{"-A", iptablesChain, "-d", ip, "-p", "tcp", "--dport", dotPort, "-j", "REJECT"},
		}
		for _, args := range rules {
			if err := s.cmdRunner.Run(s.binary, args...); err != nil {
				return fmt.Errorf("%s append %s: %w", s.binary, ip, err)
			}
		}
	}

	if !s.IsActive() {
		if err := s.cmdRunner.Run(s.binary, "-I", "OUTPUT", "1", "-j", iptablesChain); err != nil {
			return fmt.Errorf("%s hook chain: %w", s.binary, err)
		}
	}
	return nil
}

func (s *IptablesStrategy) Remove() error {
	// Individual steps fail when the chain is already gone.
	_ = s.cmdRunner.Run(s.binary, "-D", "OUTPUT", "-j", iptablesChain)
	_ = s.cmdRunner.Run(s.binary, "-F", iptablesChain)
	_ = s.cmdRunner.Run(s.binary, "-X", iptablesChain)

	if s.IsActive() {
		return fmt.Errorf("%s: chain %s still referenced from OUTPUT", s.binary, iptablesChain)
	}
	return nil
}

func (s *IptablesStrategy) IsActive() bool {
	return s.cmdRunner.Run(s.binary, "-C", "OUTPUT", "-j", iptablesChain) == nil
}

// PFStrategy loads rules into a pf anchor nested under com.apple, which the
// stock macOS pf.conf already evaluates.
type PFStrategy struct {
	cmdRunner CommandRunner
	rulesPath string
	lookPath  func(string) (string, error)
}

// NewPFStrategy creates the macOS strategy.
func NewPFStrategy(cmdRunner CommandRunner) *PFStrategy {
	return &PFStrategy{
		cmdRunner: cmdRunner,
		rulesPath: filepath.Join(pfRulesFileDir, "parentshield-pf.conf"),
		lookPath:  exec.LookPath,
	}
}

func (s *PFStrategy) Name() string {
	return "pf"
}

func (s *PFStrategy) IsAvailable() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := s.lookPath("pfctl")
	return err == nil
}

func (s *PFStrategy) Apply(ipv4, ipv6 []string) error {
	if err := os.WriteFile(s.rulesPath, []byte(renderPFRules(ipv4, ipv6)), 0600); err != nil {
		return fmt.Errorf("write pf rules: %w", err)
	}
	if err := s.cmdRunner.Run("pfctl", "-a", pfAnchor, "-f", s.rulesPath); err != nil {
		return fmt.Errorf("pfctl load: %w", err)
	}
	// Fails harmlessly when pf is already enabled.
	_ = s.cmdRunner.Run("pfctl", "-E")
	return nil
}

func (s *PFStrategy) Remove() error {
	if err := s.cmdRunner.Run("pfctl", "-a", pfAnchor, "-F", "all"); err != nil {
		return fmt.Errorf("pfctl flush: %w", err)
	}
	_ = os.Remove(s.rulesPath)
	return nil
}

func (s *PFStrategy) IsActive() bool {
	out, err := s.cmdRunner.Output("pfctl", "-a", pfAnchor, "-s", "rules")
	return err == nil && strings.TrimSpace(string(out)) != ""
}

func renderPFRules(ipv4, ipv6 []string) string {
	addrs := append(append([]string{}, ipv4...), ipv6...)
	var b strings.Builder
	fmt.Fprintf(&b, "table <%s> persist { %s }\n", pfTable, strings.Join(addrs, ", "))
	fmt.Fprintf(&b, "block return out quick proto tcp from any to <%s> port { %s, %s }\n", pfTable, dohTLSPort, dotPort)
	fmt.Fprintf(&b, "block return out quick proto udp from any to <%s> port %s\n", pfTable, dohTLSPort)
	return b.String()
}

// NetshStrategy manages Windows Defender Firewall rules by name.
type NetshStrategy struct {
	cmdRunner CommandRunner
}

// NewNetshStrategy creates the Windows strategy.
func NewNetshStrategy(cmdRunner CommandRunner) *NetshStrategy {
	return &NetshStrategy{cmdRunner: cmdRunner}
}

func (s *NetshStrategy) Name() string {
	return "netsh"
}

func (s *NetshStrategy) IsAvailable() bool {
	return runtime.GOOS == "windows"
}

func (s *NetshStrategy) Apply(ipv4, ipv6 []string) error {
	_ = s.deleteRules()

	remote := strings.Join(append(append([]string{}, ipv4...), ipv6...), ",")
	rules := [][]string{
		{"protocol=TCP", "remoteport=" + dohTLSPort + "," + dotPort},
		{"protocol=UDP", "remoteport=" + dohTLSPort},
	}
	for _, r := range rules {
		args := []string{"advfirewall", "firewall", "add", "rule",
			"name=" + netshRuleName, "dir=out", "action=block", "remoteip=" + remote}
		args = append(args, r...)
		if err := s.cmdRunner.Run("netsh", args...); err != nil {
			return fmt.Errorf("netsh add rule: %w", err)
		}
	}
	return nil
}

func (s *NetshStrategy) Remove() error {
	if !s.IsActive() {
		return nil
	}
	if err := s.deleteRules(); err != nil {
		return fmt.Errorf("netsh delete rule: %w", err)
	}
	return nil
}

func (s *NetshStrategy) IsActive() bool {
	return s.cmdRunner.Run("netsh", "advfirewall", "firewall", "show", "rule", "name="+netshRuleName) == nil
}

func (s *NetshStrategy) deleteRules() error {
	return s.cmdRunner.Run("netsh", "advfirewall", "firewall", "delete", "rule", "name="+netshRuleName)
}

// FirewallManagerImpl implements domain.FirewallManager over the strategies
// available on this platform.
type FirewallManagerImpl struct {
	strategies []domain.FirewallStrategy
	endpoints  func() (v4, v6 []string)
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewFirewallManager creates a manager with all available strategies for this platform
func NewFirewallManager(logger *zap.Logger) *FirewallManagerImpl {
	runner := &RealCommandRunner{}
	candidates := []domain.FirewallStrategy{
		NewIptablesStrategy(runner),
		NewIp6tablesStrategy(runner),
		NewPFStrategy(runner),
		NewNetshStrategy(runner),
	}

	var available []domain.FirewallStrategy
	for _, s := range candidates {
		if s.IsAvailable() {
			available = append(available, s)
		}
	}
	if len(available) == 0 {
		logger.Warn("no firewall backend available, DoH blocking disabled")
	}
	return NewFirewallManagerWithStrategies(logger, available...)
}

// NewFirewallManagerWithStrategies creates a manager with explicit strategies (for testing)
func NewFirewallManagerWithStrategies(logger *zap.Logger, strategies ...domain.FirewallStrategy) *FirewallManagerImpl {
	return &FirewallManagerImpl{
		strategies: strategies,
		endpoints:  policy.DoHEndpoints,
		logger:     logger,
	}
}

// Strategies returns the names of the active backends.
func (f *FirewallManagerImpl) Strategies() []string {
	names := make([]string, 0, len(f.strategies))
	for _, s := range f.strategies {
		names = append(names, s.Name())
	}
	return names
}

// BlockDoH installs rules on every backend that does not have them yet.
// Every backend is attempted even if an earlier one fails.
func (f *FirewallManagerImpl) BlockDoH() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.strategies) == 0 {
		return fmt.Errorf("%w: no firewall backend available", domain.ErrFirewallFailed)
	}

	v4, v6 := f.endpoints()
	var errs []error
	for _, s := range f.strategies {
		if s.IsActive() {
			continue
		}
		if err := s.Apply(v4, v6); err != nil {
			f.logger.Warn("firewall apply failed", zap.String("strategy", s.Name()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		f.logger.Info("DoH endpoints blocked", zap.String("strategy", s.Name()))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", domain.ErrFirewallFailed, errors.Join(errs...))
	}
	return nil
}

// UnblockDoH removes rules from every backend that has them.
func (f *FirewallManagerImpl) UnblockDoH() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, s := range f.strategies {
		if !s.IsActive() {
			continue
		}
		if err := s.Remove(); err != nil {
			f.logger.Warn("firewall remove failed", zap.String("strategy", s.Name()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", domain.ErrFirewallFailed, errors.Join(errs...))
	}
	return nil
}

// IsDoHBlocked reports true only when every backend has its rules installed.
func (f *FirewallManagerImpl) IsDoHBlocked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.strategies) == 0 {
		return false
	}
	for _, s := range f.strategies {
		if !s.IsActive() {
			return false
		}
	}
	return true
}

// Ensure implementations satisfy interfaces
var _ domain.FirewallStrategy = (*IptablesStrategy)(nil)
var _ domain.FirewallStrategy = (*PFStrategy)(nil)
var _ domain.FirewallStrategy = (*NetshStrategy)(nil)
var _ domain.FirewallManager = (*FirewallManagerImpl)(nil)
