// Package s3 provides a users.Backend stored as a single S3 object.
//
// The object holds the same JSON document as the file backend. A PutObject
// replaces the object atomically from the point of view of readers, which is
// all the store needs: it always writes whole snapshots.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/sandfs/pkg/users"
)

// Client is the subset of *s3.Client used by the backend.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config contains configuration for the S3 user backend.
type Config struct {
	// Client is the configured S3 client
	Client Client

	// Bucket is the S3 bucket name
	Bucket string

	// Key is the object key of the user store document
	// Default: "sandfs/users.json"
	Key string
}

// Backend reads and writes the user document in Bucket/Key.
type Backend struct {
	client Client
	bucket string
	key    string
}

// New creates an S3 backend and verifies bucket access.
//
// The bucket must already exist; this function does not create it.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	key := cfg.Key
	if key == "" {
		key = "sandfs/users.json"
	}

	if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Backend{client: cfg.Client, bucket: cfg.Bucket, key: key}, nil
}

func (b *Backend) Load(ctx context.Context) (*users.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, users.NotInitializedError(b.location())
		}
		return nil, fmt.Errorf("get %s: %w", b.location(), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.location(), err)
	}

	return users.DecodeSnapshot(data)
}

func (b *Backend) Save(ctx context.Context, snap *users.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := users.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", b.location(), err)
	}
	return nil
}

func (b *Backend) Close() error { return nil }

func (b *Backend) Name() string { return "s3" }

func (b *Backend) location() string {
	return fmt.Sprintf("s3://%s/%s", b.bucket, b.key)
}

// isNotFound recognizes a missing object. Some S3-compatible services answer
// with a generic NotFound API error instead of the typed NoSuchKey.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
