package backup

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

func TestObjectKeyFormat(t *testing.T) {
	now := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	key := ObjectKey(now)

	re := regexp.MustCompile(`^backups/2024/03/07/[0-9a-f-]{36}$`)
	require.Regexp(t, re, key)

	// Keys are unique per call.
	require.NotEqual(t, key, ObjectKey(now))
}

func TestUploadDisabledWithoutBucket(t *testing.T) {
	u := NewUploader(Config{}, nil)
	require.False(t, u.Enabled())

	_, err := u.Upload(context.Background(), "blob")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestUploadUsesConfiguredEndpoint(t *testing.T) {
	origNew, origPut := newS3ClientFromConfig, putObject
	defer func() { newS3ClientFromConfig, putObject = origNew, origPut }()

	var capturedEndpoint string
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint != nil {
			capturedEndpoint = *opts.BaseEndpoint
		}
		return &s3.Client{}
	}

	var capturedBucket, capturedKey, capturedBody string
	putObject = func(client *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		capturedBucket = *in.Bucket
		capturedKey = *in.Key
		body, err := io.ReadAll(in.Body)
		require.NoError(t, err)
		capturedBody = string(body)
		return &s3.PutObjectOutput{}, nil
	}

	u := NewUploader(Config{
		Bucket:       "keychain-backups",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
	}, nil)

	key, err := u.Upload(context.Background(), "encrypted-blob")
	require.NoError(t, err)
	require.Equal(t, capturedKey, key)
	require.Equal(t, "keychain-backups", capturedBucket)
	require.Equal(t, "encrypted-blob", capturedBody)
	require.Equal(t, "http://127.0.0.1:9000", capturedEndpoint)
}
