package config

import (
	"flag"
	"os"
	"time"

	"github.com/venturelink/messenger/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   cipher passphrase
//	-l string   cipher salt
//	-q float    per-connection event rate (events/sec)
//	-b int      per-connection event burst
//	-t int      persistence timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-k", "-l", "-q", "-b", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.CipherPassphrase, "k", config.CipherPassphrase, "cipher passphrase")
	fs.StringVar(&config.CipherSalt, "l", config.CipherSalt, "cipher salt")
	fs.Float64Var(&config.EventRate, "q", config.EventRate, "event rate (events per second per connection)")
	fs.IntVar(&config.EventBurst, "b", config.EventBurst, "event burst per connection")

	persistTimeout := fs.Int("t", int(config.PersistTimeout.Seconds()), "persist_timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PersistTimeout = time.Duration(*persistTimeout) * time.Second
}
