// Package storage publishes rendered files after generation.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "document-generator-service/internal/config"
)

// Sink stores a rendered file and returns where it ended up.
type Sink interface {
	Store(ctx context.Context, documentID uint, filePath string) (string, error)
}

// LocalSink keeps the file where the renderer wrote it.
type LocalSink struct{}

func (LocalSink) Store(_ context.Context, _ uint, filePath string) (string, error) {
	if _, err := os.Stat(filePath); err != nil {
		return "", fmt.Errorf("rendered file %q: %w", filePath, err)
	}
	return filePath, nil
}

var contentTypes = map[string]string{
	".txt":  "text/plain; charset=utf-8",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// PutObjectAPI is the part of the S3 client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads rendered files to a bucket under <prefix>/<document id>/<file name>.
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Sink builds a sink from the default AWS configuration chain.
func NewS3Sink(ctx context.Context, bucket, prefix string) (*S3Sink, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewS3SinkWithClient(client PutObjectAPI, bucket, prefix string) *S3Sink {
	if prefix == "" {
		prefix = "documents"
	}
	return &S3Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Sink) Key(documentID uint, filePath string) string {
	return path.Join(s.prefix, strconv.FormatUint(uint64(documentID), 10), filepath.Base(filePath))
}

func (s *S3Sink) Store(ctx context.Context, documentID uint, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open rendered file %q: %w", filePath, err)
	}
	defer f.Close()

	key := s.Key(documentID, filePath)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filePath))]; ok {
		input.ContentType = aws.String(ct)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload %q to s3://%s/%s: %w", filePath, s.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// FromConfig returns an S3 sink when a bucket is configured and a LocalSink otherwise.
func FromConfig(ctx context.Context, cfg appconfig.OutputConfig) (Sink, error) {
	if cfg.S3Bucket == "" {
		return LocalSink{}, nil
	}
	return NewS3Sink(ctx, cfg.S3Bucket, cfg.S3Prefix)
}
