// Package policy holds the default block-lists and the matching rules
// that decide whether a process or domain must be suppressed.
// Each category (gaming, AI, browsers, DoH resolvers) is a BlockList
// enabled by one or more feature toggles.
package policy

import (
	"strings"
	"time"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// DefaultEnforceInterval is how often the daemon re-applies policy.
const DefaultEnforceInterval = 5 * time.Second

// BlockList defines the strategy interface for one category of defaults.
type BlockList interface {
	// ID returns unique identifier (e.g., "gaming", "ai").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// ProcessNames returns lowercase process names to terminate.
	ProcessNames() []string

	// Domains returns lowercase domains to deny.
	Domains() []string

	// ProcessesEnabled reports whether the config turns on this list's processes.
	ProcessesEnabled(cfg *domain.AppConfig) bool

	// DomainsEnabled reports whether the config turns on this list's domains.
	DomainsEnabled(cfg *domain.AppConfig) bool
}

// staticList is a BlockList backed by fixed data.
type staticList struct {
	id             string
	name           string
	processes      []string
	domains        []string
	processToggles []domain.Feature
	domainToggles  []domain.Feature
}

func (l *staticList) ID() string { return l.id }
func (l *staticList) Name() string { return l.name }
func (l *staticList) ProcessNames() []string { return l.processes }
func (l *staticList) Domains() []string { return l.domains }

func (l *staticList) ProcessesEnabled(cfg *domain.AppConfig) bool {
	return anyEnabled(cfg, l.processToggles)
}

func (l *staticList) DomainsEnabled(cfg *domain.AppConfig) bool {
	return anyEnabled(cfg, l.domainToggles)
}

func anyEnabled(cfg *domain.AppConfig, features []domain.Feature) bool {
	for _, f := range features {
		if cfg.Enabled(f) {
			return true
		}
	}
	return false
}

// lower returns a lowercased copy of items.
func lower(items ...string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, strings.ToLower(it))
	}
	return out
}
