package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webtask.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ResolvesProfiles(t *testing.T) {
	path := writeConfig(t, `
default: staging
profiles:
  staging:
    base_url: https://staging.example.test
    timeout_ms: 5000
    max_auth_retries: 2
    rate_limit: 10
    headers:
      X-Client: webtask
  prod:
    base_url: https://api.example.test
    validate_ssl: false
`)

	f, err := Load(path)
	require.NoError(t, err)

	p, err := f.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.test", p.BaseURL)
	assert.Equal(t, 5*time.Second, p.Timeout())
	assert.Equal(t, 2, p.MaxAuthRetries)
	assert.Equal(t, 10.0, p.RateLimit)
	assert.Equal(t, "webtask", p.Headers["X-Client"])
	assert.True(t, p.GetValidateSSL())

	prod, err := f.Profile("prod")
	require.NoError(t, err)
	assert.False(t, prod.GetValidateSSL())
}

func TestLoad_UnknownProfile(t *testing.T) {
	path := writeConfig(t, `
default: missing
profiles: {}
`)

	f, err := Load(path)
	require.NoError(t, err)

	_, err = f.Profile("")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "profiles: [not: a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
