// Package config handles configuration for the keychain agent, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the keychain agent.
//
// Fields:
//   - DatabaseDSN: sqlite DSN for the local-scope key-value store.
//   - NATSURL / NATSSubjectPrefix: request transport settings. An empty URL
//     keeps the agent on the in-process loopback transport.
//   - RequestTimeout: how long a dispatched request may stay pending.
//   - AutoLock: lock the session after this much idle time; zero disables.
//   - S3AccessKey / S3SecretKey / S3Bucket / S3Region / S3BaseEndpoint:
//     object storage for encrypted backup uploads. Empty bucket disables.
type Config struct {
	DatabaseDSN       string
	NATSURL           string
	NATSSubjectPrefix string
	RequestTimeout    time.Duration
	AutoLock          time.Duration
	S3AccessKey       string
	S3SecretKey       string
	S3Bucket          string
	S3Region          string
	S3BaseEndpoint    string
}

// LoadDefaults populates Config with local development defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "file:keychain.db?_pragma=busy_timeout(5000)"
	c.NATSURL = ""
	c.NATSSubjectPrefix = "keychain"
	c.RequestTimeout = 30 * time.Second
	c.AutoLock = 0
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
