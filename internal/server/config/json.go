package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/venturelink/messenger/internal/flagx"
	"github.com/venturelink/messenger/internal/timex"
)

// JsonConfig is an intermediate DTO for reading JSON configuration files.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "5s" and integer nanoseconds. After unmarshalling,
// its fields are copied into the runtime Config struct.
type JsonConfig struct {
	EndpointAddr     string         `json:"endpoint_addr"`
	DatabaseDSN      string         `json:"database_dsn"`
	SecretKey        string         `json:"secret_key"`
	CipherPassphrase string         `json:"cipher_passphrase"`
	CipherSalt       string         `json:"cipher_salt"`
	EventRate        float64        `json:"event_rate"`
	EventBurst       int            `json:"event_burst"`
	PersistTimeout   timex.Duration `json:"persist_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; if
// neither is set, no JSON file is loaded. An unreadable or invalid file
// panics: a half-applied config is worse than no server.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.CipherPassphrase != "" {
		config.CipherPassphrase = c.CipherPassphrase
	}
	if c.CipherSalt != "" {
		config.CipherSalt = c.CipherSalt
	}
	if c.EventRate != 0 {
		config.EventRate = c.EventRate
	}
	if c.EventBurst != 0 {
		config.EventBurst = c.EventBurst
	}
	if c.PersistTimeout.Duration != 0 {
		config.PersistTimeout = time.Duration(c.PersistTimeout.Duration)
	}
}
