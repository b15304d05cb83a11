package infra

import (
	"encoding/json"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/schedule"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, dir, machineID string) *ConfigStoreImpl {
	t.Helper()
	return NewConfigStore(dir, NewStaticKeyProvider(machineID), zap.NewNop()).
		WithHashCost(bcrypt.MinCost).
		WithClock(func() time.Time { return fixedNow })
}

func TestConfigStore_InitializeAndLoad(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir, "machine-a")

	assert.False(t, store.Exists())

	cfg, err := store.Initialize("hunter2")
	require.NoError(t, err)
	assert.True(t, store.Exists())
	assert.Equal(t, domain.ConfigVersion, cfg.Version)
	assert.Equal(t, fixedNow.Unix(), cfg.InstallationTimestamp)

	require.NoError(t, store.Save(cfg))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.InstallationID, loaded.InstallationID)
	assert.Equal(t, cfg.InstallationTimestamp, loaded.InstallationTimestamp)

	assert.True(t, store.VerifyPassword("hunter2"))
	assert.False(t, store.VerifyPassword("hunter3"))
	assert.False(t, store.VerifyPassword(""))
}

func TestConfigStore_InitializeErrors(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "machine-a")

	_, err := store.Initialize("")
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)

	_, err = store.Initialize("pw")
	require.NoError(t, err)

	_, err = store.Initialize("pw")
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)
}

func TestConfigStore_LoadErrors(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		store := newTestStore(t, t.TempDir(), "machine-a")
		_, err := store.Load()
		assert.ErrorIs(t, err, domain.ErrNotInitialized)
	})

	t.Run("garbage is corrupt", func(t *testing.T) {
		dir := t.TempDir()
		store := newTestStore(t, dir, "machine-a")
		require.NoError(t, os.WriteFile(store.Path(), []byte("not a config"), 0600))

		_, err := store.Load()
		assert.ErrorIs(t, err, domain.ErrCorruptData)
	})

	t.Run("other machine cannot decrypt", func(t *testing.T) {
		dir := t.TempDir()
		_, err := newTestStore(t, dir, "machine-a").Initialize("pw")
		require.NoError(t, err)

		other := newTestStore(t, dir, "machine-b")
		_, err = other.Load()
		assert.ErrorIs(t, err, domain.ErrWrongKey)
		assert.False(t, other.VerifyPassword("pw"))
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		dir := t.TempDir()
		store := newTestStore(t, dir, "machine-a")
		_, err := store.Initialize("pw")
		require.NoError(t, err)

		blob, err := os.ReadFile(store.Path())
		require.NoError(t, err)
		blob[len(blob)-1] ^= 0xff
		require.NoError(t, os.WriteFile(store.Path(), blob, 0600))

		_, err = store.Load()
		assert.ErrorIs(t, err, domain.ErrWrongKey)
	})

	t.Run("missing machine id", func(t *testing.T) {
		dir := t.TempDir()
		_, err := newTestStore(t, dir, "machine-a").Initialize("pw")
		require.NoError(t, err)

		_, err = newTestStore(t, dir, "").Load()
		assert.ErrorIs(t, err, domain.ErrNoMachineID)
	})
}

func TestConfigStore_FileIsEncrypted(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "machine-a")
	cfg, err := store.Initialize("pw")
	require.NoError(t, err)

	blob, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(blob), cfg.InstallationID)
	assert.NotContains(t, string(blob), "password_hash")

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_ChangePassword(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "machine-a")
	_, err := store.Initialize("old")
	require.NoError(t, err)

	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	err = store.ChangePassword("wrong", "new")
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed change must not touch the store")
	assert.True(t, store.VerifyPassword("old"))

	require.NoError(t, store.ChangePassword("old", "new"))
	assert.False(t, store.VerifyPassword("old"))
	assert.True(t, store.VerifyPassword("new"))

	assert.ErrorIs(t, store.ChangePassword("new", ""), domain.ErrInvalidPassword)
}

func TestConfigStore_SaveKeepsImmutableFields(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "machine-a")
	orig, err := store.Initialize("pw")
	require.NoError(t, err)

	cfg, err := store.Load()
	require.NoError(t, err)
	cfg.InstallationID = "forged"
	cfg.InstallationTimestamp = 42
	cfg.Version = 1
	cfg.GameBlocking = true
	cfg.BlockedDomains.Add("Example.COM")
	require.NoError(t, store.Save(cfg))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, orig.InstallationID, loaded.InstallationID)
	assert.Equal(t, orig.InstallationTimestamp, loaded.InstallationTimestamp)
	assert.Equal(t, domain.ConfigVersion, loaded.Version)
	assert.True(t, loaded.GameBlocking)
	assert.True(t, loaded.BlockedDomains.Has("example.com"))
	assert.Equal(t, fixedNow, loaded.LastModified.UTC())
}

func TestConfigStore_MigratesOldVersion(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir, "machine-a")

	legacy := map[string]any{
		"version":                1,
		"installation_id":        "legacy-id",
		"installation_timestamp": 1600000000,
		"password_hash":          "",
		"game_blocking_enabled":  true,
		"ai_blocking_enabled":    false,
		"dns_blocking_enabled":   false,
		"blocked_processes":      []string{"Fortnite.exe"},
		"blocked_domains":        []string{},
		"allowed_processes":      []string{},
		"allowed_domains":        []string{},
		"schedules":              []map[string]any{{"name": "school", "enabled": true, "days": []int{1}, "start_minutes": 480, "end_minutes": 900, "blocking_enabled": true}},
	}
	plain, err := json.Marshal(legacy)
	require.NoError(t, err)
	blob, err := store.encrypt(plain)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), blob, 0600))

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.ConfigVersion, cfg.Version)
	assert.Equal(t, "legacy-id", cfg.InstallationID)
	assert.Equal(t, "system", cfg.Theme)
	assert.False(t, cfg.BrowserBlocking)
	assert.True(t, cfg.BlockedProcesses.Has("fortnite.exe"))
	require.Len(t, cfg.Schedules, 1)
	assert.NotEmpty(t, cfg.Schedules[0].ID)

	// Migration is persisted immediately.
	raw, err := store.read()
	require.NoError(t, err)
	assert.Equal(t, domain.ConfigVersion, raw.Version)
	assert.Equal(t, cfg.Schedules[0].ID, raw.Schedules[0].ID)
}

func TestConfigStore_NeverDowngradesVersion(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "machine-a")
	cfg, err := store.Initialize("pw")
	require.NoError(t, err)

	cfg.Version = domain.ConfigVersion + 1
	require.NoError(t, store.write(cfg))

	cfg.Version = domain.ConfigVersion
	require.NoError(t, store.Save(cfg))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.ConfigVersion+1, loaded.Version)
}

func TestConfigStore_MasterPassword(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir, "machine-a")
	cfg, err := store.Initialize("forgotten")
	require.NoError(t, err)

	master, err := store.MasterPassword()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z2-7]{4}(-[A-Z2-7]{4}){5}$`), master)
	assert.Equal(t, DeriveMasterPassword("machine-a", cfg.InstallationTimestamp), master)

	again, err := store.MasterPassword()
	require.NoError(t, err)
	assert.Equal(t, master, again)

	assert.ErrorIs(t, store.ResetWithMasterPassword("AAAA-BBBB", "fresh"), domain.ErrInvalidPassword)
	assert.True(t, store.VerifyPassword("forgotten"))

	require.NoError(t, store.ResetWithMasterPassword(" "+toLowerASCII(master)+" ", "fresh"))
	assert.True(t, store.VerifyPassword("fresh"))
	assert.False(t, store.VerifyPassword("forgotten"))

	// Master does not change when the control password does.
	after, err := store.MasterPassword()
	require.NoError(t, err)
	assert.Equal(t, master, after)
}

func TestDeriveMasterPassword(t *testing.T) {
	a := DeriveMasterPassword("machine-a", 1700000000)
	assert.Equal(t, a, DeriveMasterPassword("machine-a", 1700000000))
	assert.NotEqual(t, a, DeriveMasterPassword("machine-b", 1700000000))
	assert.NotEqual(t, a, DeriveMasterPassword("machine-a", 1700000001))
	assert.Equal(t, normalizeMasterPassword(a), normalizeMasterPassword(toLowerASCII(a)))
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func TestConfigStore_SaveRejectsMalformedSchedule(t *testing.T) {
	store := newTestStore(t, t.TempDir(), "machine-a")
	cfg, err := store.Initialize("pw")
	require.NoError(t, err)

	cfg.AIBlocking = true
	cfg.Schedules = []domain.ScheduleEntry{domain.NewScheduleEntry("night", []int{5}, 22*60, 6*60)}
	err = store.Save(cfg)
	var ie *schedule.InvalidEntryError
	require.ErrorAs(t, err, &ie)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.False(t, loaded.AIBlocking, "nothing written")
	assert.Empty(t, loaded.Schedules)

	cfg.Schedules = []domain.ScheduleEntry{
		domain.NewScheduleEntry("night", []int{5}, 22*60, 24*60),
		domain.NewScheduleEntry("early", []int{6}, 0, 6*60),
	}
	require.NoError(t, store.Save(cfg))
}
