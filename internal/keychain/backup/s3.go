// Package backup pushes encrypted vault exports to S3-compatible object
// storage. The blob is already encrypted under the master password when it
// reaches this package; storage never sees plaintext.
package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ettaverse/etta-keychain-sub002/internal/logging"
)

// ErrNotConfigured is returned when an upload is requested but no bucket is
// configured.
var ErrNotConfigured = errors.New("backup storage is not configured")

// Config holds the object-storage settings. An empty Bucket disables uploads.
type Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// Uploader writes export blobs to a bucket.
type Uploader struct {
	config Config
	log    logging.Logger
}

func NewUploader(config Config, log logging.Logger) *Uploader {
	if log == nil {
		log = logging.Nop{}
	}
	return &Uploader{config: config, log: log}
}

// Enabled reports whether a destination bucket is configured.
func (u *Uploader) Enabled() bool {
	return u.config.Bucket != ""
}

// ObjectKey returns a fresh storage key, partitioned by date.
func ObjectKey(now time.Time) string {
	return fmt.Sprintf("backups/%d/%02d/%02d/%v", now.Year(), now.Month(), now.Day(), uuid.New())
}

// Test seams for client construction.
var (
	newS3ClientFromConfig = s3.NewFromConfig
	putObject             = func(client *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return client.PutObject(ctx, in)
	}
)

func (u *Uploader) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(u.config.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			u.config.AccessKey,
			u.config.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if u.config.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(u.config.BaseEndpoint)
		}
	}), nil
}

// Upload stores one encrypted export blob and returns its object key.
func (u *Uploader) Upload(ctx context.Context, blob string) (string, error) {
	if !u.Enabled() {
		return "", ErrNotConfigured
	}

	client, err := u.getClient(ctx)
	if err != nil {
		return "", fmt.Errorf("building s3 client: %w", err)
	}

	bucket := u.config.Bucket
	key := ObjectKey(time.Now())

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   strings.NewReader(blob),
	})
	if err != nil {
		return "", fmt.Errorf("uploading backup: %w", err)
	}

	u.log.Info(ctx, "backup uploaded", "bucket", bucket, "key", key)
	return key, nil
}
