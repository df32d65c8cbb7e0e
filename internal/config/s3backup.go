package config

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gopkg.in/yaml.v3"

	"github.com/rs/zerolog"
)

// s3Backup archives applied config versions to an S3-compatible bucket. It
// follows the same shape as the teacher's Cloudflare R2 client: a custom
// endpoint resolver and static credentials, since config-history backup has
// the exact same "durable off-box copy of versioned artifacts" requirement
// the teacher solved for database backups.
type s3Backup struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

// S3BackupConfig carries the connection details for an S3-compatible
// backup target. Endpoint is the full base URL (e.g. a Cloudflare R2
// account endpoint, a MinIO deployment, or left empty to use AWS S3's
// regular endpoint resolution for Region).
type S3BackupConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
}

// NewS3Backup builds an s3Backup from cfg. It returns an error if any
// required credential field is missing, the same fail-fast validation the
// teacher's R2 client performs.
func NewS3Backup(ctx context.Context, cfg S3BackupConfig, log zerolog.Logger) (*s3Backup, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("config: s3 backup credentials incomplete")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion(region),
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     region,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: load aws config: %w", err)
	}

	return &s3Backup{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log.With().Str("component", "config_s3backup").Logger(),
	}, nil
}

// RestoreLatest downloads the newest object under the backup prefix and
// parses it as a FleetConfig, for recovering a fleet's configuration when
// the local data directory's on-disk history (see history.go) was lost. It
// mirrors the teacher's RestoreService: list the bucket, pick the object to
// restore, download it, then hand the caller a usable value to Apply,
// simplified to a single YAML document instead of the teacher's staged
// multi-database tar archive since a FleetConfig is one small document.
func (b *s3Backup) RestoreLatest(ctx context.Context) (FleetConfig, error) {
	listed, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})
	if err != nil {
		return FleetConfig{}, fmt.Errorf("config: list backup objects: %w", err)
	}
	if len(listed.Contents) == 0 {
		return FleetConfig{}, fmt.Errorf("config: no backup objects found under prefix %q", b.prefix)
	}

	latest := listed.Contents[0]
	for _, obj := range listed.Contents[1:] {
		if obj.Key != nil && latest.Key != nil && *obj.Key > *latest.Key {
			latest = obj
		}
	}

	buf := manager.NewWriteAtBuffer(nil)
	downloader := manager.NewDownloader(b.client)
	if _, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    latest.Key,
	}); err != nil {
		return FleetConfig{}, fmt.Errorf("config: download backup object %q: %w", aws.ToString(latest.Key), err)
	}

	var cfg FleetConfig
	if err := yaml.Unmarshal(buf.Bytes(), &cfg); err != nil {
		return FleetConfig{}, fmt.Errorf("config: parse restored backup %q: %w", aws.ToString(latest.Key), err)
	}

	b.log.Info().Str("key", aws.ToString(latest.Key)).Msg("restored config from object storage")
	return cfg, nil
}

// archive uploads v's config document to the backup bucket under a key that
// embeds the version number, so listing the bucket prefix reconstructs the
// same version timeline the on-disk history directory provides.
func (b *s3Backup) archive(v Version) error {
	raw, err := yaml.Marshal(v.Config)
	if err != nil {
		return fmt.Errorf("config: marshal version %d for backup: %w", v.Number, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	key := fmt.Sprintf("%s%04d-%s.yaml", b.prefix, v.Number, v.AppliedAt.UTC().Format("20060102T150405Z"))

	uploader := manager.NewUploader(b.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(raw),
		ContentLength: aws.Int64(int64(len(raw))),
	})
	if err != nil {
		return fmt.Errorf("config: upload version %d to object storage: %w", v.Number, err)
	}

	b.log.Info().Str("key", key).Int("version", v.Number).Msg("archived config version to object storage")
	return nil
}
