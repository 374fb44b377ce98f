// Package s3 uploads rendered run artifacts to an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"network-kpi/internal/logger"
	"network-kpi/internal/reporting"
)

// Config configures the S3 client.
type Config struct {
	Bucket string
	Region string
	// Endpoint is an optional custom endpoint, e.g. MinIO.
	Endpoint string
	// Prefix is prepended to every object key.
	Prefix string
}

// PutObjectAPI is the subset of the S3 client used by Uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// NewClient builds an S3 client from the default credential chain.
func NewClient(ctx context.Context, cfg Config) (*awss3.Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Uploader writes artifacts under <prefix>/<run id>/<name>.
type Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	log    *slog.Logger
}

// NewUploader creates an Uploader.
func NewUploader(client PutObjectAPI, bucket, prefix string, log *slog.Logger) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: prefix, log: logger.OrDiscard(log)}
}

// Key returns the object key of an artifact of a run.
func (u *Uploader) Key(runID, name string) string {
	return path.Join(u.prefix, runID, name)
}

// Upload puts every artifact and returns the s3:// URIs written.
func (u *Uploader) Upload(ctx context.Context, runID string, artifacts []reporting.Artifact) ([]string, error) {
	uris := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		key := u.Key(runID, a.Name)
		_, err := u.client.PutObject(ctx, &awss3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(a.Body),
			ContentType: aws.String(a.ContentType),
		})
		if err != nil {
			return uris, fmt.Errorf("put %s: %w", key, err)
		}
		uri := fmt.Sprintf("s3://%s/%s", u.bucket, key)
		u.log.Info("s3: uploaded artifact", "uri", uri, "bytes", len(a.Body))
		uris = append(uris, uri)
	}
	return uris, nil
}
