package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"refpay/internal/platform/config"
)

type Archive interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// New picks the archive the config asks for: an S3-compatible bucket, a local
// directory, or nil when reports are not archived.
func New(ctx context.Context, cfg config.Config) (Archive, error) {
	switch {
	case cfg.ArchiveToS3():
		archive, err := NewS3(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return archive, nil
	case strings.TrimSpace(cfg.ReportDir) != "":
		return &Local{Dir: cfg.ReportDir}, nil
	default:
		return nil, nil
	}
}

type Local struct {
	Dir string
}

func (l *Local) Save(_ context.Context, key, _ string, data []byte) (string, error) {
	path := filepath.Join(l.Dir, filepath.FromSlash(cleanKey(key)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type S3 struct {
	client *s3.Client
	bucket string
}

func NewS3(ctx context.Context, cfg config.Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.ReportRegion)}
	if cfg.ReportAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.ReportAccessKeyID, cfg.ReportSecretAccessKey, "",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load report storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ReportEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ReportEndpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, bucket: cfg.ReportBucket}, nil
}

func (s *S3) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key = cleanKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// cleanKey keeps keys relative so a crafted name cannot climb out of the archive root.
func cleanKey(key string) string {
	key = filepath.ToSlash(filepath.Clean("/" + key))
	return strings.TrimPrefix(key, "/")
}
