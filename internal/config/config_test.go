package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault_MatchesBaseline verifies the built-in defaults
func TestDefault_MatchesBaseline(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 0, cfg.DeviceIndex)
	assert.Equal(t, 640, cfg.FrameWidth)
	assert.Equal(t, 480, cfg.FrameHeight)
	assert.Equal(t, 30.0, cfg.FPS)
	assert.Equal(t, 5.0, cfg.BufferSeconds)
	assert.Equal(t, 5.0, cfg.PostEventSeconds)
	assert.Equal(t, 0.5, cfg.DetectionIntervalSeconds)
	assert.Equal(t, 0.5, cfg.MinConfidence)
	assert.Equal(t, 1, cfg.PersistWorkers)
	assert.Equal(t, []string{"/media/pi", "/mnt", "/media", "/Volumes"}, cfg.StorageRoots)
	assert.Equal(t, "recordings", cfg.LocalDir)
	assert.NoError(t, cfg.Validate())
}

// TestCapacity_Rounds verifies capacity = round(fps * bufferSeconds)
func TestCapacity_Rounds(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 150, cfg.Capacity())

	cfg.FPS = 29.97
	assert.Equal(t, 150, cfg.Capacity()) // 149.85 rounds up

	cfg.FPS = 15
	cfg.BufferSeconds = 2
	assert.Equal(t, 30, cfg.Capacity())

	cfg.FPS = 0.1
	cfg.BufferSeconds = 0.1
	assert.Equal(t, 1, cfg.Capacity()) // never below 1
}

// TestDurationHelpers verifies second-to-duration conversion
func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 500*time.Millisecond, cfg.DetectionInterval())
	assert.Equal(t, 5*time.Second, cfg.PostEvent())
	assert.Equal(t, 5*time.Second, cfg.BufferWindow())
}

// TestValidate_Rejections verifies each invariant is enforced
func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative device index", func(c *Config) { c.DeviceIndex = -1 }},
		{"zero width", func(c *Config) { c.FrameWidth = 0 }},
		{"zero height", func(c *Config) { c.FrameHeight = 0 }},
		{"zero fps", func(c *Config) { c.FPS = 0 }},
		{"negative fps", func(c *Config) { c.FPS = -30 }},
		{"zero buffer", func(c *Config) { c.BufferSeconds = 0 }},
		{"zero post event", func(c *Config) { c.PostEventSeconds = 0 }},
		{"zero detection interval", func(c *Config) { c.DetectionIntervalSeconds = 0 }},
		{"confidence above 1", func(c *Config) { c.MinConfidence = 1.5 }},
		{"zero workers", func(c *Config) { c.PersistWorkers = 0 }},
		{"empty local dir", func(c *Config) { c.LocalDir = "" }},
		{"http without endpoint", func(c *Config) { c.DetectorEndpoint = "" }},
		{"unknown detector mode", func(c *Config) { c.DetectorMode = "magic" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestValidate_DetectorOffRequiresFallback verifies running without a
// detector demands an explicit fallback policy
func TestValidate_DetectorOffRequiresFallback(t *testing.T) {
	cfg := Default()
	cfg.DetectorMode = DetectorOff

	assert.Error(t, cfg.Validate(), "off without fallback must be rejected")

	cfg.DetectorFallback = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg.DetectorFallback = FallbackRecordAll
	assert.NoError(t, cfg.Validate())

	cfg.DetectorFallback = FallbackDisabled
	assert.NoError(t, cfg.Validate())
}

// TestLoad_EnvOverrides verifies SECCAM_* variables win over defaults
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SECCAM_FPS", "15")
	t.Setenv("SECCAM_BUFFER_SECONDS", "2")
	t.Setenv("SECCAM_DETECTOR_MODE", "off")
	t.Setenv("SECCAM_DETECTOR_FALLBACK", "disabled")
	t.Setenv("SECCAM_STORAGE_ROOTS", "/tmp/a:/tmp/b")
	t.Setenv("SECCAM_PERSIST_WORKERS", "3")

	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.FPS)
	assert.Equal(t, 2.0, cfg.BufferSeconds)
	assert.Equal(t, 30, cfg.Capacity())
	assert.Equal(t, DetectorOff, cfg.DetectorMode)
	assert.Equal(t, FallbackDisabled, cfg.DetectorFallback)
	assert.Equal(t, []string{"/tmp/a", "/tmp/b"}, cfg.StorageRoots)
	assert.Equal(t, 3, cfg.PersistWorkers)
}

// TestLoad_MalformedEnvKeepsDefault verifies unparsable numeric env values
// fall back to the default instead of failing the load
func TestLoad_MalformedEnvKeepsDefault(t *testing.T) {
	t.Setenv("SECCAM_FPS", "not-a-number")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.FPS)
}

// TestLoad_YAMLFile verifies file values apply under env values
func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seccam.yaml")
	yamlBody := []byte("fps: 10\nbufferSeconds: 3\nlocalDir: clips\n")
	require.NoError(t, os.WriteFile(path, yamlBody, 0644))

	t.Setenv("SECCAM_BUFFER_SECONDS", "4")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.FPS, "file overrides default")
	assert.Equal(t, 4.0, cfg.BufferSeconds, "env overrides file")
	assert.Equal(t, "clips", cfg.LocalDir)
}

// TestLoad_MissingFileFails verifies a named but absent config file is an error
func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/seccam.yaml", "")
	assert.Error(t, err)
}

// TestLoad_InvalidResultFails verifies validation runs on the merged result
func TestLoad_InvalidResultFails(t *testing.T) {
	t.Setenv("SECCAM_FPS", "-1")

	_, err := Load("", "")
	assert.Error(t, err)
}

// TestLoad_EnvFile verifies dotenv values are visible to the merge
func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("SECCAM_LOCAL_DIR=dotenv_clips\n"), 0644))
	// godotenv mutates the process environment; undo it for later tests
	t.Cleanup(func() { os.Unsetenv("SECCAM_LOCAL_DIR") })

	cfg, err := Load("", envPath)
	require.NoError(t, err)
	assert.Equal(t, "dotenv_clips", cfg.LocalDir)
}
