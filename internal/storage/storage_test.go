package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"a.png", "1234_photo.jpg", "enhanced_x y.jpeg"} {
		assert.NoError(t, ValidateName(ok), ok)
	}
	for _, bad := range []string{"", ".", "..", "../a.png", "a/b.png", `a\b.png`, "/etc/passwd", "a\x00.png"} {
		assert.Error(t, ValidateName(bad), bad)
	}
}

func TestLocalService_PutGet(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	svc, err := NewLocalService(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.Put(ctx, "a.png", []byte("one"), "image/png"))
	data, err := svc.Get(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	require.NoError(t, svc.Put(ctx, "a.png", []byte("two"), "image/png"))
	data, err = svc.Get(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocalService_NotFoundAndTraversal(t *testing.T) {
	svc, err := NewLocalService(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Get(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, "../secret")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, svc.Put(ctx, "../escape.png", []byte("x"), ""))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	panic("multipart upload not expected")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	panic("multipart upload not expected")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	panic("multipart upload not expected")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	panic("multipart upload not expected")
}

func TestS3Service_PutGet(t *testing.T) {
	client := newFakeS3()
	svc, err := NewS3Service(client, "bucket", "/enhancer/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.Put(ctx, "a.png", []byte("pixels"), "image/png"))
	assert.Contains(t, client.objects, "bucket/enhancer/uploads/a.png")
	assert.Equal(t, "image/png", client.types["bucket/enhancer/uploads/a.png"])

	data, err := svc.Get(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), data)

	_, err = svc.Get(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewS3Service_RequiresBucket(t *testing.T) {
	_, err := NewS3Service(newFakeS3(), "", "")
	assert.Error(t, err)
}
