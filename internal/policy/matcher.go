package policy

import (
	"strings"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// KeywordGroup is a product family matched by substring.
type KeywordGroup struct {
	Name     string
	Keywords []string
}

// FuzzyGroups are checked in order after exact matching fails.
var FuzzyGroups = []KeywordGroup{
	{Name: "gaming", Keywords: []string{"steam", "epic", "origin", "battle.net", "roblox", "minecraft", "discord"}},
	{Name: "ai", Keywords: []string{"chatgpt", "claude", "copilot", "cursor", "codeium", "tabnine"}},
}

// VendorOverride exempts a vendor's desktop/CLI client from process blocking
// when one of its websites is on the allowed domain list.
type VendorOverride struct {
	Keyword string
	Domains []string
}

// VendorOverrides lists AI assistants that double as developer tools.
var VendorOverrides = []VendorOverride{
	{Keyword: "claude", Domains: []string{"claude.ai", "anthropic.com"}},
}

// IsProcessBlocked decides whether a process with the given name must be terminated.
// The allowed set always wins; exact block matches come before keyword groups.
func IsProcessBlocked(name string, blocked, allowed, allowedDomains domain.StringSet) bool {
	n := strings.ToLower(name)

	if allowed.Has(n) {
		return false
	}

	if vendorAllowed(n, allowedDomains) {
		return false
	}

	if blocked.Has(n) {
		return true
	}

	if containsAllowed(n, allowed) {
		return false
	}

	for _, group := range FuzzyGroups {
		for _, kw := range group.Keywords {
			if !strings.Contains(n, kw) {
				continue
			}
			if anyContains(blocked, kw) {
				return true
			}
		}
	}

	return false
}

// IsDomainBlocked decides whether a domain must be denied.
// A domain is covered by a rule when it equals the rule or is a strict subdomain of it.
func IsDomainBlocked(name string, blocked, allowed domain.StringSet) bool {
	d := domain.NormalizeDomain(name)

	if coveredBy(d, allowed) {
		return false
	}
	return coveredBy(d, blocked)
}

// CoversDomain reports whether d equals rule or is a subdomain of it.
func CoversDomain(d, rule string) bool {
	return d == rule || strings.HasSuffix(d, "."+rule)
}

func coveredBy(d string, rules domain.StringSet) bool {
	if rules.Has(d) {
		return true
	}
	for r := range rules {
		if r != "" && CoversDomain(d, r) {
			return true
		}
	}
	return false
}

func vendorAllowed(n string, allowedDomains domain.StringSet) bool {
	for _, v := range VendorOverrides {
		if !strings.Contains(n, v.Keyword) {
			continue
		}
		for d := range allowedDomains {
			for _, vd := range v.Domains {
				if strings.Contains(d, vd) {
					return true
				}
			}
		}
	}
	return false
}

// containsAllowed reports whether any allowed process name is a substring of n.
func containsAllowed(n string, allowed domain.StringSet) bool {
	for a := range allowed {
		if a != "" && strings.Contains(n, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

func anyContains(set domain.StringSet, kw string) bool {
	for s := range set {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
