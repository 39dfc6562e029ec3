package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsHolderReadsScalarValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	content := []byte("settings:\n  late_fee_days: 7\n  late_fee_type: percent\n  enable_suspension: true\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewSettingsHolder(Config{SettingsFile: path})
	require.NoError(t, err)

	value, ok := holder.Lookup("late_fee_days")
	assert.True(t, ok)
	assert.Equal(t, "7", value)

	value, ok = holder.Lookup("late_fee_type")
	assert.True(t, ok)
	assert.Equal(t, "percent", value)

	value, ok = holder.Lookup("enable_suspension")
	assert.True(t, ok)
	assert.Equal(t, "true", value)

	_, ok = holder.Lookup("suspend_days")
	assert.False(t, ok)
}

func TestNewSettingsHolderMissingFileFallsBack(t *testing.T) {
	holder, err := NewSettingsHolder(Config{SettingsFile: filepath.Join(t.TempDir(), "absent.yml")})
	require.NoError(t, err)

	_, ok := holder.Lookup("late_fee_days")
	assert.False(t, ok)
}

func TestNewSettingsHolderRejectsNestedValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte("settings:\n  late_fee_days:\n    nested: 1\n"), 0o600))

	_, err := NewSettingsHolder(Config{SettingsFile: path})
	assert.Error(t, err)
}

func TestStaticSettingsHolder(t *testing.T) {
	holder := NewStaticSettingsHolder(map[string]string{"suspend_days": "30"})
	value, ok := holder.Lookup("suspend_days")
	assert.True(t, ok)
	assert.Equal(t, "30", value)

	var nilHolder *SettingsHolder
	_, ok = nilHolder.Lookup("suspend_days")
	assert.False(t, ok)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADMIN_EMAILS", "ops@example.com, billing@example.com ,")
	t.Setenv("SCHEDULER_RUN_INTERVAL", "not-a-duration")
	t.Setenv("SCHEDULER_RUN_HOUR", "3")

	cfg := Load()
	assert.Equal(t, []string{"ops@example.com", "billing@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 3, cfg.Scheduler.RunHour)
	assert.Equal(t, "15m0s", cfg.Scheduler.RunInterval.String())
	assert.False(t, cfg.Redis.Enabled())
}
