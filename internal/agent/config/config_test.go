package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, c.DatabaseDSN, "file:keychain.db?_pragma=busy_timeout(5000)")
	assert.Equal(t, c.NATSURL, "")
	assert.Equal(t, c.NATSSubjectPrefix, "keychain")
	assert.Equal(t, c.RequestTimeout, 30*time.Second)
	assert.Equal(t, c.AutoLock, time.Duration(0))
	assert.Equal(t, c.S3Bucket, "")
	assert.Equal(t, c.S3Region, "us-east-1")
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	c := LoadConfig()

	require.NotNil(t, c)

	assert.Equal(t, c.DatabaseDSN, "file:keychain.db?_pragma=busy_timeout(5000)")
	assert.Equal(t, c.NATSSubjectPrefix, "keychain")
	assert.Equal(t, c.RequestTimeout, 30*time.Second)
}
