package objectstore

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	headErr error
	getErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

type fakePresigner struct{ url string }

func (f fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: f.url + "/" + aws.ToString(in.Key)}, nil
}

func TestS3PutReturnsLocator(t *testing.T) {
	fs := &fakeS3{}
	s := NewS3WithAPI(fs, fakePresigner{}, S3Options{Bucket: "images-bucket"})

	loc, err := s.Put(context.Background(), "images/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "s3://images-bucket/images/a.png", loc)
	require.Len(t, fs.puts, 1)
	assert.Equal(t, int64(3), aws.ToInt64(fs.puts[0].ContentLength))
	assert.Equal(t, "image/png", aws.ToString(fs.puts[0].ContentType))
}

func TestS3PresignRewritesDockerHost(t *testing.T) {
	p := fakePresigner{url: "http://host.docker.internal:4566/bucket"}

	s := NewS3WithAPI(&fakeS3{}, p, S3Options{Bucket: "bucket", PublicHost: "localhost"})
	url, err := s.Presign(context.Background(), "k.png", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566/bucket/k.png", url)

	s = NewS3WithAPI(&fakeS3{}, p, S3Options{Bucket: "bucket"})
	url, err = s.Presign(context.Background(), "k.png", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "host.docker.internal")
}

func TestS3ExistsDistinguishesMissingFromFailure(t *testing.T) {
	fs := &fakeS3{}
	s := NewS3WithAPI(fs, fakePresigner{}, S3Options{Bucket: "b"})
	ctx := context.Background()

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	fs.headErr = &types.NotFound{}
	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	fs.headErr = &smithy.GenericAPIError{Code: "NotFound"}
	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	fs.headErr = errors.New("connection refused")
	_, err = s.Exists(ctx, "k")
	assert.Error(t, err)
}

func TestS3GetMissingKey(t *testing.T) {
	fs := &fakeS3{getErr: &types.NoSuchKey{}}
	s := NewS3WithAPI(fs, fakePresigner{}, S3Options{Bucket: "b"})

	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("bucket")

	loc, err := m.Put(ctx, "images/a b.png", []byte("data"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "memory://bucket/images/a b.png", loc)

	ok, _ := m.Exists(ctx, "images/a b.png")
	assert.True(t, ok)

	rc, err := m.Get(ctx, "images/a b.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "data", string(body))

	m.now = func() time.Time { return time.Unix(1000, 0) }
	url, err := m.Presign(ctx, "images/a b.png", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "memory://bucket/images%2Fa%20b.png?expires=1060", url)

	require.NoError(t, m.Delete(ctx, "images/a b.png"))
	require.NoError(t, m.Delete(ctx, "images/a b.png"))
	_, err = m.Get(ctx, "images/a b.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, m.Len())
}
