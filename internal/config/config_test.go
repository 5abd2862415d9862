package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grossrc/DigiKey-Organizer/internal/config"
	"github.com/grossrc/DigiKey-Organizer/internal/scanner"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.CameraIndex)
	assert.Equal(t, 20*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 80*time.Millisecond, cfg.DecodeInterval)
	assert.Equal(t, []string{"zxing", "zxing-multi"}, cfg.Backends)
	assert.Equal(t, "balanced", cfg.ScanMode)
	assert.Nil(t, cfg.AutoFocus)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCAN_MODE", "aggressive")
	t.Setenv("SCAN_TIMEOUT", "45s")
	t.Setenv("DECODE_BACKENDS", "zxing-multi")
	t.Setenv("CAMERA_AUTO_FOCUS", "false")
	t.Setenv("CAMERA_FOCUS", "12.5")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.ScanTimeout)
	assert.Equal(t, []string{"zxing-multi"}, cfg.Backends)

	props := cfg.CameraProperties()
	require.NotNil(t, props.AutoFocus)
	assert.False(t, *props.AutoFocus)
	require.NotNil(t, props.Focus)
	assert.Equal(t, 12.5, *props.Focus)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("SCAN_MODE", "turbo")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestScannerConfigOverrides(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	sc := cfg.ScannerConfig("zxing", "", 0)
	assert.Equal(t, scanner.ModeBalanced, sc.Mode)
	assert.Equal(t, 20*time.Second, sc.Timeout)
	assert.Equal(t, "zxing", sc.BackendName)

	sc = cfg.ScannerConfig("zxing", scanner.ModeFast, 5*time.Second)
	assert.Equal(t, scanner.ModeFast, sc.Mode)
	assert.Equal(t, 5*time.Second, sc.Timeout)
}
