package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Client is the subset of the S3 API used by S3Manager.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options describes an S3 compatible bucket (AWS, R2, MinIO).
type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Manager keeps assets as objects in a bucket. Object keys are the
// asset names, optionally below a prefix.
type S3Manager struct {
	client S3Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Client builds a client from static credentials. A custom endpoint
// switches to path style addressing.
func NewS3Client(o S3Options) *s3.Client {
	cfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, ""),
		Region:      o.Region,
	}

	return s3.NewFromConfig(cfg, func(opts *s3.Options) {
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
			opts.UsePathStyle = true
		}
	})
}

func NewS3Manager(client S3Client, bucket, prefix string, logger *zap.Logger) *S3Manager {
	return &S3Manager{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

func (m *S3Manager) key(name string) string {
	return m.prefix + name
}

// Store uploads data under a fresh name. The put is conditional, so an
// object that already exists is never replaced.
func (m *S3Manager) Store(ctx context.Context, data io.Reader, ext string) (string, error) {
	name := NameFor(nowFunc(), ext)
	if err := validName(name); err != nil {
		return "", err
	}

	// the request signer needs a seekable body
	b, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key(name)),
		Body:          bytes.NewReader(b),
		ContentLength: aws.Int64(int64(len(b))),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", m.key(name), err)
	}

	m.logger.Info("asset stored", zap.String("bucket", m.bucket), zap.String("key", m.key(name)))
	return name, nil
}

// Remove deletes the object. S3 treats a missing key as a successful delete.
func (m *S3Manager) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(name)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", m.key(name), err)
	}

	m.logger.Info("asset deleted", zap.String("bucket", m.bucket), zap.String("key", m.key(name)))
	return nil
}
