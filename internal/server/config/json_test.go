package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"endpoint_addr":     "www.example:9000",
		"database_dsn":      "postgres://example/messenger",
		"secret_key":        "my_secret_key",
		"cipher_passphrase": "passphrase",
		"cipher_salt":       "salt",
		"event_rate":        10,
		"event_burst":       20,
		"persist_timeout":   "3s",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddr)
		assert.Equal(t, "postgres://example/messenger", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, "passphrase", cfg.CipherPassphrase)
		assert.Equal(t, "salt", cfg.CipherSalt)
		assert.Equal(t, float64(10), cfg.EventRate)
		assert.Equal(t, 20, cfg.EventBurst)
		assert.Equal(t, 3*time.Second, cfg.PersistTimeout)
	})

	t.Run("no config flag leaves values unchanged", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddr:   "defaults:1234",
			DatabaseDSN:    "dsn",
			SecretKey:      "key",
			PersistTimeout: 2 * time.Second,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddr)
		assert.Equal(t, "dsn", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Second, cfg.PersistTimeout)
	})

	t.Run("partial json keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, map[string]any{"endpoint_addr": "only:1"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		cfg.SecretKey = "keep-me"
		parseJson(cfg)

		assert.Equal(t, "only:1", cfg.EndpointAddr)
		assert.Equal(t, "keep-me", cfg.SecretKey)
		assert.Equal(t, 5*time.Second, cfg.PersistTimeout)
	})
}
