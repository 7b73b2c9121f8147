package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/sandfs/pkg/users"
	userstesting "github.com/marmos91/sandfs/pkg/users/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory stand-in for a single S3 bucket.
type fakeClient struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func newFakeClient(bucket string) *fakeClient {
	return &fakeClient{bucket: bucket, objects: make(map[string][]byte)}
}

func (f *fakeClient) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3Backend(t *testing.T) {
	suite := &userstesting.BackendTestSuite{
		NewBackend: func(t *testing.T) users.Backend {
			backend, err := New(context.Background(), Config{
				Client: newFakeClient("sandfs"),
				Bucket: "sandfs",
			})
			require.NoError(t, err)
			return backend
		},
	}
	suite.Run(t)
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Bucket: "sandfs"})
	assert.Error(t, err, "client is required")

	_, err = New(ctx, Config{Client: newFakeClient("sandfs")})
	assert.Error(t, err, "bucket is required")

	_, err = New(ctx, Config{Client: newFakeClient("sandfs"), Bucket: "other"})
	assert.Error(t, err, "bucket must be reachable")
}

func TestNew_DefaultKey(t *testing.T) {
	client := newFakeClient("sandfs")
	backend, err := New(context.Background(), Config{Client: client, Bucket: "sandfs"})
	require.NoError(t, err)

	require.NoError(t, backend.Save(context.Background(), users.NewSnapshot()))
	assert.Contains(t, client.objects, "sandfs/users.json")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.False(t, isNotFound(errors.New("boom")))
}
