package config

import (
	"os"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.True(t, cfg.Admission.Enabled)
	assert.Equal(t, domain.TrackerConfig{Threshold: 100, Window: time.Minute}, cfg.Admission.Tracker())
	assert.Equal(t, 32, cfg.Admission.Shards)
	assert.Equal(t, 100, cfg.Concurrency.Max)
	assert.False(t, cfg.Stats.Enabled)
	assert.Equal(t, "admission:stats", cfg.Stats.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ADMISSION_THRESHOLD", "2")
	t.Setenv("ADMISSION_WINDOW", "1s")
	t.Setenv("TRUST_XFF", "true")
	t.Setenv("ADMISSION_STATS_ENABLED", "true")
	t.Setenv("ADMISSION_STATS_REDIS_ADDR", "localhost:6379")
	t.Setenv("CONCURRENCY_TIMEOUT", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Admission.Threshold)
	assert.Equal(t, time.Second, cfg.Admission.Window)
	assert.True(t, cfg.Admission.TrustXFF)
	assert.True(t, cfg.Stats.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Concurrency.Timeout)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ADMISSION_THRESHOLD", "lots")
	t.Setenv("ADMISSION_WINDOW", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultThreshold, cfg.Admission.Threshold)
	assert.Equal(t, domain.DefaultWindow, cfg.Admission.Window)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]map[string]string{
		"zero threshold":     {"ADMISSION_THRESHOLD": "0"},
		"negative window":    {"ADMISSION_WINDOW": "-1s"},
		"zero shards":        {"ADMISSION_SHARDS": "0"},
		"negative slots":     {"CONCURRENCY_MAX": "-1"},
		"stats without addr": {"ADMISSION_STATS_ENABLED": "true"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
