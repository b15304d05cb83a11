package infra

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ulrichando/ParentShield/internal/domain"
)

const (
	hostsBeginMarker = "# BEGIN ParentShield"
	hostsEndMarker   = "# END ParentShield"
	nullRoute        = "0.0.0.0"
)

var hostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// DefaultHostsPath returns the system hosts file for this platform.
func DefaultHostsPath() string {
	if runtime.GOOS == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return root + `\System32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}

// HostsFileImpl implements domain.HostsManager.
// It owns one delimited section of the hosts file and leaves the rest untouched.
type HostsFileImpl struct {
	path      string
	cmdRunner CommandRunner
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewHostsFile creates a hosts manager for path.
func NewHostsFile(path string, logger *zap.Logger) *HostsFileImpl {
	return &HostsFileImpl{
		path:      path,
		cmdRunner: &RealCommandRunner{},
		logger:    logger,
	}
}

// NewHostsFileWithDeps creates a hosts manager with injectable dependencies (for testing)
func NewHostsFileWithDeps(path string, cmdRunner CommandRunner, logger *zap.Logger) *HostsFileImpl {
	return &HostsFileImpl{
		path:      path,
		cmdRunner: cmdRunner,
		logger:    logger,
	}
}

// BlockDomains rewrites the managed section to null-route exactly domains.
// Invalid host names are skipped. An empty list clears the section.
func (h *HostsFileImpl) BlockDomains(domains []string) error {
	valid := ValidHostnames(domains)
	if len(valid) == 0 {
		return h.UnblockAll()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.read()
	if err != nil {
		return err
	}

	base := strings.TrimRight(stripSection(current), "\n")
	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	b.WriteString(renderSection(valid))
	updated := b.String()

	if updated == current {
		return nil
	}
	if err := h.write(updated); err != nil {
		return err
	}

	h.logger.Info("hosts file updated", zap.Int("domains", len(valid)))
	h.flushDNS()
	return nil
}

// UnblockAll removes the managed section.
func (h *HostsFileImpl) UnblockAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.read()
	if err != nil {
		return err
	}
	if !strings.Contains(current, hostsBeginMarker) {
		return nil
	}

	stripped := strings.TrimRight(stripSection(current), "\n") + "\n"
	if err := h.write(stripped); err != nil {
		return err
	}

	h.logger.Info("hosts file section removed")
	h.flushDNS()
	return nil
}

// BlockedDomains returns the domains listed in the managed section.
// A www. alias is folded into its base domain when both are listed.
func (h *HostsFileImpl) BlockedDomains() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.read()
	if err != nil {
		return nil, err
	}

	hosts := domain.NewStringSet()
	inSection := false
	sc := bufio.NewScanner(strings.NewReader(current))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == hostsBeginMarker:
			inSection = true
		case line == hostsEndMarker:
			inSection = false
		case inSection:
			fields := strings.Fields(line)
			if len(fields) == 2 && fields[0] == nullRoute {
				hosts.Add(fields[1])
			}
		}
	}

	out := domain.NewStringSet()
	for d := range hosts {
		if base, ok := strings.CutPrefix(d, "www."); ok && hosts.Has(base) {
			continue
		}
		out.Add(d)
	}
	return out.Sorted(), nil
}

// Path returns the hosts file path.
func (h *HostsFileImpl) Path() string {
	return h.path
}

func (h *HostsFileImpl) read() (string, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrHostsWriteFailed, err)
	}
	return string(data), nil
}

// write replaces the file atomically, falling back to an in-place write
// where rename is not possible (e.g. a bind-mounted /etc/hosts).
func (h *HostsFileImpl) write(content string) error {
	perm := os.FileMode(0644)
	if info, err := os.Stat(h.path); err == nil {
		perm = info.Mode().Perm()
	}

	if err := atomicWrite(h.path, []byte(content), perm); err != nil {
		h.logger.Debug("atomic hosts write failed, writing in place", zap.Error(err))
		if err := os.WriteFile(h.path, []byte(content), perm); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrHostsWriteFailed, err)
		}
	}
	return nil
}

// flushDNS asks the OS resolver to drop cached answers. Best effort.
func (h *HostsFileImpl) flushDNS() {
	var cmds [][]string
	switch runtime.GOOS {
	case "darwin":
		cmds = [][]string{{"dscacheutil", "-flushcache"}, {"killall", "-HUP", "mDNSResponder"}}
	case "windows":
		cmds = [][]string{{"ipconfig", "/flushdns"}}
	default:
		cmds = [][]string{{"resolvectl", "flush-caches"}}
	}
	for _, c := range cmds {
		if err := h.cmdRunner.Run(c[0], c[1:]...); err != nil {
			h.logger.Debug("dns cache flush failed", zap.String("cmd", c[0]), zap.Error(err))
		}
	}
}

// ValidHostnames lowercases, de-duplicates and sorts domains, dropping
// anything that is not a plain host name (paths, wildcards, localhost).
func ValidHostnames(domains []string) []string {
	set := domain.NewStringSet()
	for _, d := range domains {
		d = domain.NormalizeDomain(d)
		if len(d) > 253 || !hostnamePattern.MatchString(d) {
			continue
		}
		set.Add(d)
	}
	return set.Sorted()
}

func renderSection(domains []string) string {
	sort.Strings(domains)
	var b strings.Builder
	b.WriteString(hostsBeginMarker)
	b.WriteString("\n")
	for _, d := range domains {
		fmt.Fprintf(&b, "%s %s\n", nullRoute, d)
	}
	b.WriteString(hostsEndMarker)
	b.WriteString("\n")
	return b.String()
}

// stripSection removes every managed section from content.
func stripSection(content string) string {
	var b strings.Builder
	inSection := false
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == hostsBeginMarker:
			inSection = true
		case trimmed == hostsEndMarker:
			inSection = false
		case !inSection:
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Ensure HostsFileImpl implements domain.HostsManager.
var _ domain.HostsManager = (*HostsFileImpl)(nil)
