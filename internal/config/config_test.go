package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.False(t, cfg.HasCredentials())
}

func TestLoadFile(t *testing.T) {
	path := writeEnv(t, `
MEDIAWIKI_URL=https://wiki.example.org/w/api.php
MEDIAWIKI_USERNAME=Bot@list
MEDIAWIKI_PASSWORD=secret
MEDIAWIKI_TIMEOUT=10s
MEDIAWIKI_MAX_RETRIES=5
MEDIAWIKI_MAXLAG=5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://wiki.example.org/w/api.php", cfg.APIURL)
	assert.Equal(t, "Bot@list", cfg.Username)
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.Maxlag)
	assert.NoError(t, cfg.Validate())
}

func TestEnvironmentWins(t *testing.T) {
	path := writeEnv(t, "MEDIAWIKI_URL=https://file.example.org/w/api.php\n")
	t.Setenv("MEDIAWIKI_URL", "https://env.example.org/w/api.php")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.org/w/api.php", cfg.APIURL)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"timeout": "MEDIAWIKI_TIMEOUT=soon\n",
		"retries": "MEDIAWIKI_MAX_RETRIES=-1\n",
		"maxlag":  "MEDIAWIKI_MAXLAG=-5\n",
		"lagword": "MEDIAWIKI_MAXLAG=soon\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeEnv(t, content))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{APIURL: "https://x", Username: "u"}).Validate())
	assert.Error(t, (&Config{APIURL: "https://x", Maxlag: -1}).Validate())
	assert.NoError(t, (&Config{APIURL: "https://x"}).Validate())
	assert.NoError(t, (&Config{APIURL: "https://x", Maxlag: 5}).Validate())
}
