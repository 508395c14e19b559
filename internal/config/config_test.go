package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// inDir runs the test from dir so the relative config path resolves there.
func inDir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	req := require.New(t)
	inDir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("VOICE_JWT_SECRET", "s3cret")
	t.Setenv("VOICE_CALLS_TIMEOUT", "20s")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("s3cret", cfg.JWTSecret)
	req.Equal(20*time.Second, cfg.Calls.Timeout)
	req.Equal(8080, cfg.Port)
	req.Equal(120*time.Second, cfg.Registry.LivenessWindow)
	req.Equal(30*time.Second, cfg.Presence.Grace)
	req.Equal(60*time.Second, cfg.Presence.StaleAfter)
	req.Equal(1024, cfg.Persist.QueueSize)
	req.Equal([]string{"stun:stun.l.google.com:19302"}, cfg.RTC.ICEServers)
}

func TestLoad_File(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	req.NoError(os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	req.NoError(os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(`
mode: debug
port: 9090
jwt_secret: from-file
calls:
  restricted: true
  timeout: 10s
booking:
  url: http://booking.local/check
`), 0o644))
	inDir(t, dir)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	req.NoError(err)
	req.Equal("debug", cfg.Mode)
	req.Equal(9090, cfg.Port)
	req.True(cfg.Calls.Restricted)
	req.Equal(10*time.Second, cfg.Calls.Timeout)
	req.Equal("http://booking.local/check", cfg.Booking.URL)
}

func TestValidate(t *testing.T) {
	req := require.New(t)
	valid := Config{
		JWTSecret: "x",
		Calls:     CallsConfig{Timeout: time.Second},
		Presence:  PresenceConfig{Grace: time.Second, StaleAfter: time.Minute},
	}
	req.NoError(valid.Validate())

	noSecret := valid
	noSecret.JWTSecret = ""
	req.Error(noSecret.Validate())

	badTimeout := valid
	badTimeout.Calls.Timeout = 0
	req.Error(badTimeout.Validate())

	staleBeforeGrace := valid
	staleBeforeGrace.Presence.StaleAfter = time.Millisecond
	req.Error(staleBeforeGrace.Validate())
}
