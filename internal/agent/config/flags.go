package config

import (
	"flag"
	"os"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   sqlite DSN for the local store
//	-n string   NATS server URL (empty keeps the loopback transport)
//	-s string   NATS subject prefix
//	-t int      request timeout, seconds
//	-l int      auto-lock after this many idle minutes (0 disables)
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-n", "-s", "-t", "-l", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "sqlite DSN")
	fs.StringVar(&config.NATSURL, "n", config.NATSURL, "NATS server URL")
	fs.StringVar(&config.NATSSubjectPrefix, "s", config.NATSSubjectPrefix, "NATS subject prefix")

	requestTimeout := fs.Int("t", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")
	autoLock := fs.Int("l", int(config.AutoLock.Minutes()), "auto-lock delay (in minutes, 0 disables)")

	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	config.AutoLock = time.Duration(*autoLock) * time.Minute
}
