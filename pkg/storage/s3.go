package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	merr "github.com/vango-dev/microscope/internal/errors"
)

// S3API is the subset of *s3.Client used by the S3 engine.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 stores each item as an object named prefix+key.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "us-east-1", Credentials: creds})
//	engine := storage.NewS3(client, "my-bucket", "microscope/")
type S3 struct {
	client  S3API
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewS3 creates an S3 engine.
func NewS3(client S3API, bucket, prefix string) *S3 {
	return &S3{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		timeout: 10 * time.Second,
	}
}

// WithTimeout sets the per-request timeout. Defaults to 10s.
func (s *S3) WithTimeout(d time.Duration) *S3 {
	s.timeout = d
	return s
}

func (s *S3) objectKey(key string) string {
	return s.prefix + key
}

// GetItem implements Engine.
func (s *S3) GetItem(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", false, nil
		}
		return "", false, merr.New(merr.CodeStorageRead).WithDetailf("s3 object %q", s.objectKey(key)).Wrap(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, merr.New(merr.CodeStorageRead).WithDetailf("s3 object %q", s.objectKey(key)).Wrap(err)
	}
	return string(data), true, nil
}

// SetItem implements Engine.
func (s *S3) SetItem(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        strings.NewReader(value),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata: map[string]string{
			"updated-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return merr.New(merr.CodeStorageWrite).WithDetailf("s3 object %q", s.objectKey(key)).Wrap(err)
	}
	return nil
}

// RemoveItem implements Engine.
func (s *S3) RemoveItem(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return merr.New(merr.CodeStorageRemove).WithDetailf("s3 object %q", s.objectKey(key)).Wrap(err)
	}
	return nil
}

// Keys implements Lister.
func (s *S3) Keys() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
		}
	}
	return keys, nil
}
