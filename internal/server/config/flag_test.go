package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name     string
		args     []string
		expected *Config
	}{
		{
			name: "all flags set",
			args: []string{"cmd",
				"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret",
				"-k", "passphrase", "-l", "salt", "-q", "5", "-b", "10", "-t", "3",
			},
			expected: &Config{
				EndpointAddr:     "127.0.0.1:9090",
				DatabaseDSN:      "db",
				SecretKey:        "secret",
				CipherPassphrase: "passphrase",
				CipherSalt:       "salt",
				EventRate:        5,
				EventBurst:       10,
				PersistTimeout:   3 * time.Second,
			},
		},
		{
			name: "unrelated flags ignored",
			args: []string{"cmd", "-a", ":7070", "-x", "noise"},
			expected: &Config{
				EndpointAddr:   ":7070",
				PersistTimeout: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}
			parseFlags(config)

			assert.Equal(t, tt.expected, config)
		})
	}
}
