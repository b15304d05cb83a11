// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no infrastructure dependencies.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConfigVersion is the current schema version of AppConfig.
// Loading an older document migrates it up to this version.
const ConfigVersion = 2

// Feature toggles. Each one enables a category of default block-lists.
const (
	FeatureGame    Feature = "game"
	FeatureAI      Feature = "ai"
	FeatureDNS     Feature = "dns"
	FeatureBrowser Feature = "browser"
)

// Feature names one of the four independent blocking toggles.
type Feature string

// AppConfig is the single persisted policy document.
type AppConfig struct {
	Version               int    `json:"version"`
	InstallationID        string `json:"installation_id"`
	InstallationTimestamp int64  `json:"installation_timestamp"` // unix seconds, never changes
	PasswordHash          string `json:"password_hash"`

	GameBlocking    bool `json:"game_blocking_enabled"`
	AIBlocking      bool `json:"ai_blocking_enabled"`
	DNSBlocking     bool `json:"dns_blocking_enabled"`
	BrowserBlocking bool `json:"browser_blocking_enabled"`

	BlockedProcesses StringSet `json:"blocked_processes"`
	BlockedDomains   StringSet `json:"blocked_domains"`
	AllowedProcesses StringSet `json:"allowed_processes"`
	AllowedDomains   StringSet `json:"allowed_domains"`

	Schedules []ScheduleEntry `json:"schedules"`

	// Display preferences, passed through untouched by the daemon.
	ShowNotifications bool   `json:"show_notifications"`
	StartMinimized    bool   `json:"start_minimized"`
	StartAtBoot       bool   `json:"start_at_boot"`
	Theme             string `json:"theme"`

	LastModified time.Time `json:"last_modified"`
}

// NewAppConfig returns a fresh document with a new installation identity.
func NewAppConfig(now time.Time) *AppConfig {
	return &AppConfig{
		Version:               ConfigVersion,
		InstallationID:        uuid.NewString(),
		InstallationTimestamp: now.Unix(),
		BlockedProcesses:      NewStringSet(),
		BlockedDomains:        NewStringSet(),
		AllowedProcesses:      NewStringSet(),
		AllowedDomains:        NewStringSet(),
		Schedules:             []ScheduleEntry{},
		ShowNotifications:     true,
		StartAtBoot:           true,
		Theme:                 "system",
		LastModified:          now.UTC(),
	}
}

// Enabled reports whether the given feature toggle is on.
func (c *AppConfig) Enabled(f Feature) bool {
	switch f {
	case FeatureGame:
		return c.GameBlocking
	case FeatureAI:
		return c.AIBlocking
	case FeatureDNS:
		return c.DNSBlocking
	case FeatureBrowser:
		return c.BrowserBlocking
	default:
		return false
	}
}

// Normalize lowercases every name set and makes nil collections empty.
// Matching is case-insensitive, so stored names are too.
func (c *AppConfig) Normalize() {
	c.BlockedDomains = c.BlockedDomains.Lowered()
	c.AllowedDomains = c.AllowedDomains.Lowered()
	c.BlockedProcesses = c.BlockedProcesses.Lowered()
	c.AllowedProcesses = c.AllowedProcesses.Lowered()
	if c.Schedules == nil {
		c.Schedules = []ScheduleEntry{}
	}
}

// ScheduleEntry is one named time-window rule.
// Days use 0 = Sunday through 6 = Saturday, matching time.Weekday.
// StartMinutes and EndMinutes are minute-of-day offsets in [0, 1440);
// windows that wrap past midnight must be split into two entries.
type ScheduleEntry struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Enabled         bool   `json:"enabled"`
	Days            []int  `json:"days"`
	StartMinutes    int    `json:"start_minutes"`
	EndMinutes      int    `json:"end_minutes"`
	BlockingEnabled bool   `json:"blocking_enabled"`
}

// NewScheduleEntry creates an enabled blocking window with a fresh ID.
func NewScheduleEntry(name string, days []int, start, end int) ScheduleEntry {
	return ScheduleEntry{
		ID:              uuid.NewString(),
		Name:            name,
		Enabled:         true,
		Days:            days,
		StartMinutes:    start,
		EndMinutes:      end,
		BlockingEnabled: true,
	}
}

// HasDay reports whether the entry applies on the given weekday.
func (s ScheduleEntry) HasDay(day time.Weekday) bool {
	for _, d := range s.Days {
		if d == int(day) {
			return true
		}
	}
	return false
}

// Covers reports whether minute-of-day m falls in [StartMinutes, EndMinutes).
func (s ScheduleEntry) Covers(m int) bool {
	return s.StartMinutes <= m && m < s.EndMinutes
}

// ProcessInfo is a running process as reported by the platform backend.
type ProcessInfo struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// ActivityEvent records one enforcement action for the history view.
type ActivityEvent struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"` // "process_terminated"
	Target    string    `json:"target"`
	PID       int       `json:"pid,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Activity kinds.
const (
	ActivityProcessTerminated = "process_terminated"
)

// EnforcementResult captures what happened during a single enforcement pass.
type EnforcementResult struct {
	BlockingActive  bool
	Terminated      []ProcessInfo
	BlockedDomains  []string
	FirewallEnabled bool
	Errors          []error
	ExecutedAt      time.Time
	DurationMs      int64
}

// ServiceStatus is the OS-level lifecycle state of the daemon service.
type ServiceStatus string

const (
	ServiceRunning      ServiceStatus = "running"
	ServiceStopped      ServiceStatus = "stopped"
	ServiceNotInstalled ServiceStatus = "not_installed"
	ServiceUnknown      ServiceStatus = "unknown"
)

// NormalizeDomain trims and lowercases a domain name.
func NormalizeDomain(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}
