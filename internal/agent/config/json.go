package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/flagx"
	"github.com/ettaverse/etta-keychain-sub002/internal/timex"
)

// JsonConfig is the DTO for reading JSON configuration files. It uses
// timex.Duration for interval fields, which allows parsing both string
// values such as "30s" and integer nanoseconds. After unmarshalling, its
// fields are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN       string         `json:"database_dsn"`
	NATSURL           string         `json:"nats_url"`
	NATSSubjectPrefix string         `json:"nats_subject_prefix"`
	RequestTimeout    timex.Duration `json:"request_timeout"`
	AutoLock          timex.Duration `json:"auto_lock"`
	S3AccessKey       string         `json:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c/-config flags; if neither is set,
// no file is loaded. A JSON file is a complete configuration: every field is
// copied into the target. Read or parse failures panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	config.DatabaseDSN = c.DatabaseDSN
	config.NATSURL = c.NATSURL
	config.NATSSubjectPrefix = c.NATSSubjectPrefix
	config.RequestTimeout = time.Duration(c.RequestTimeout.Duration)
	config.AutoLock = time.Duration(c.AutoLock.Duration)
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
