package uploader

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"cis-timetable/logger"
)

// S3Putter is the part of the upload manager the publisher needs.
type S3Putter interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

var knownTypes = map[string]string{
	".ics":  "text/calendar; charset=utf-8",
	".html": "text/html; charset=utf-8",
}

func contentTypeFor(a Artifact) string {
	if a.ContentType != "" {
		return a.ContentType
	}
	ext := filepath.Ext(a.Name)
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// S3Publisher uploads artifacts to a bucket configured for static website
// hosting.
type S3Publisher struct {
	Bucket   string
	Prefix   string
	uploader S3Putter
}

// NewS3Publisher loads the default AWS configuration (environment, shared
// config files, instance roles).
func NewS3Publisher(ctx context.Context, bucket, prefix string) (*S3Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	return &S3Publisher{
		Bucket:   bucket,
		Prefix:   prefix,
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
	}, nil
}

// NewS3PublisherWith uses an existing uploader.
func NewS3PublisherWith(uploader S3Putter, bucket, prefix string) *S3Publisher {
	return &S3Publisher{Bucket: bucket, Prefix: prefix, uploader: uploader}
}

func (p *S3Publisher) Name() string { return "s3" }

func (p *S3Publisher) Publish(ctx context.Context, artifacts []Artifact) error {
	for _, a := range artifacts {
		key := path.Join(p.Prefix, a.Name)

		contentType := contentTypeFor(a)
		_, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(p.Bucket),
			Key:          aws.String(key),
			Body:         bytes.NewReader(a.Data),
			ContentType:  aws.String(contentType),
			CacheControl: aws.String("max-age=300"),
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s to S3: %w", key, err)
		}
		logger.Log.Infof("Uploaded %s to s3://%s/%s", a.Name, p.Bucket, key)
	}
	return nil
}
