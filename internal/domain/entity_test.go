package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cfg := NewAppConfig(now)

	assert.Equal(t, ConfigVersion, cfg.Version)
	assert.NotEmpty(t, cfg.InstallationID)
	assert.Equal(t, int64(1700000000), cfg.InstallationTimestamp)
	assert.False(t, cfg.GameBlocking || cfg.AIBlocking || cfg.DNSBlocking || cfg.BrowserBlocking)
	assert.True(t, cfg.ShowNotifications)
	assert.True(t, cfg.StartAtBoot)
	assert.False(t, cfg.StartMinimized)
	assert.Equal(t, "system", cfg.Theme)
	assert.NotNil(t, cfg.BlockedDomains)
	assert.Empty(t, cfg.Schedules)

	other := NewAppConfig(now)
	assert.NotEqual(t, cfg.InstallationID, other.InstallationID)
}

func TestAppConfig_Enabled(t *testing.T) {
	cfg := &AppConfig{GameBlocking: true, DNSBlocking: true}

	assert.True(t, cfg.Enabled(FeatureGame))
	assert.False(t, cfg.Enabled(FeatureAI))
	assert.True(t, cfg.Enabled(FeatureDNS))
	assert.False(t, cfg.Enabled(FeatureBrowser))
	assert.False(t, cfg.Enabled(Feature("bogus")))
}

func TestAppConfig_Normalize(t *testing.T) {
	cfg := &AppConfig{
		BlockedDomains:   NewStringSet("Example.COM", " roblox.com "),
		AllowedDomains:   NewStringSet("Docs.Example.com"),
		BlockedProcesses: NewStringSet("Steam.exe"),
	}
	cfg.Normalize()

	assert.Equal(t, []string{"example.com", "roblox.com"}, cfg.BlockedDomains.Sorted())
	assert.Equal(t, []string{"docs.example.com"}, cfg.AllowedDomains.Sorted())
	assert.Equal(t, []string{"steam.exe"}, cfg.BlockedProcesses.Sorted())
	assert.NotNil(t, cfg.AllowedProcesses)
	assert.NotNil(t, cfg.Schedules)
}

func TestAppConfig_JSONUsesStableKeys(t *testing.T) {
	cfg := NewAppConfig(time.Unix(1700000000, 0))
	cfg.BlockedDomains.Add("b.com", "a.com")
	cfg.Schedules = append(cfg.Schedules, NewScheduleEntry("school", []int{1, 2}, 480, 900))

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{"a.com", "b.com"}, raw["blocked_domains"])
	assert.Contains(t, raw, "game_blocking_enabled")
	assert.Contains(t, raw, "installation_timestamp")

	var back AppConfig
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, cfg.InstallationID, back.InstallationID)
	assert.True(t, back.BlockedDomains.Has("a.com"))
	require.Len(t, back.Schedules, 1)
	assert.Equal(t, 480, back.Schedules[0].StartMinutes)
}

func TestScheduleEntry_HasDayAndCovers(t *testing.T) {
	e := NewScheduleEntry("evening", []int{0, 6}, 1080, 1260)

	assert.True(t, e.Enabled)
	assert.True(t, e.BlockingEnabled)
	assert.True(t, e.HasDay(time.Sunday))
	assert.True(t, e.HasDay(time.Saturday))
	assert.False(t, e.HasDay(time.Monday))
	assert.True(t, e.Covers(1080))
	assert.False(t, e.Covers(1260))
}

func TestStringSet(t *testing.T) {
	s := NewStringSet("b", "a")
	s.Add("c")
	s.Remove("b")

	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("b"))
	assert.Equal(t, []string{"a", "c"}, s.Sorted())

	c := s.Clone()
	c.Add("z")
	assert.False(t, s.Has("z"))

	u := NewStringSet("x")
	u.AddAll(s)
	assert.Equal(t, []string{"a", "c", "x"}, u.Sorted())

	var fromNull StringSet
	require.NoError(t, json.Unmarshal([]byte("null"), &fromNull))
	assert.NotNil(t, fromNull)
	assert.Empty(t, fromNull)
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeDomain("  Example.Com "))
}
