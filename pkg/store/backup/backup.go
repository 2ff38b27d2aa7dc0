// Package backup periodically snapshots the badger store to an S3 bucket.
// Snapshots use badger's incremental backup stream: each run uploads only
// the versions written since the previous successful upload.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/mrosetti/forchetta/internal/logger"
)

// S3Config configures the snapshot destination. Endpoint is for
// S3-compatible services (MinIO and the like); static credentials are
// optional, the default AWS chain applies otherwise.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// Uploader streams badger snapshots to S3 on a fixed interval.
type Uploader struct {
	db       *badgerdb.DB
	client   *s3.Client
	bucket   string
	prefix   string
	interval time.Duration

	// since is the badger version watermark of the last successful upload.
	since uint64
}

// New validates the destination and builds an Uploader over db.
func New(ctx context.Context, db *badgerdb.DB, cfg S3Config, interval time.Duration) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("backup: region is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("backup: interval must be positive, got %v", interval)
	}

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Uploader{
		db:       db,
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.KeyPrefix,
		interval: interval,
	}, nil
}

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var options []func(*awsConfig.LoadOptions) error
	options = append(options, awsConfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		options = append(options, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("backup: load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Run uploads a snapshot every interval until ctx is cancelled. Failures are
// logged and retried on the next tick; they never stop the loop.
func (u *Uploader) Run(ctx context.Context) {
	logger.Info("backup: uploading to s3://%s/%s every %v", u.bucket, u.prefix, u.interval)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("backup: stopped")
			return
		case <-ticker.C:
			if err := u.Snapshot(ctx); err != nil {
				logger.Error("backup: snapshot failed: %v", err)
			}
		}
	}
}

// Snapshot streams all versions since the last successful upload into one
// S3 object. An empty delta is skipped without uploading.
func (u *Uploader) Snapshot(ctx context.Context) error {
	var buf bytes.Buffer
	next, err := u.db.Backup(&buf, u.since)
	if err != nil {
		return fmt.Errorf("badger backup stream: %w", err)
	}
	if buf.Len() == 0 {
		logger.Debug("backup: no changes since version %d, skipping", u.since)
		return nil
	}

	key := u.objectKey(time.Now().UTC())
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}

	logger.Info("backup: uploaded %d bytes to s3://%s/%s (versions %d..%d)",
		buf.Len(), u.bucket, key, u.since, next)
	u.since = next
	return nil
}

func (u *Uploader) objectKey(now time.Time) string {
	name := fmt.Sprintf("forchetta-%s-%d.badger", now.Format("20060102T150405Z"), u.since)
	if u.prefix == "" {
		return name
	}
	return u.prefix + "/" + name
}
