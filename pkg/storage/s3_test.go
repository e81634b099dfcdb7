package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merr "github.com/vango-dev/microscope/internal/errors"
)

// fakeS3 keeps objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	failPut error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]string)}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var names []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range names {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3RoundTrip(t *testing.T) {
	fake := newFakeS3()
	e := NewS3(fake, "bucket", "app/")

	_, ok, err := e.GetItem("todos")
	require.NoError(t, err, "missing object is not an error")
	assert.False(t, ok)

	require.NoError(t, e.SetItem("todos", `[1,2]`))
	assert.Contains(t, fake.objects, "app/todos")

	v, ok, err := e.GetItem("todos")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1,2]`, v)

	fake.objects["other/skip"] = "x"
	keys, err := e.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"todos"}, keys)

	require.NoError(t, e.RemoveItem("todos"))
	_, ok, err = e.GetItem("todos")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3WriteFailure(t *testing.T) {
	fake := newFakeS3()
	fake.failPut = errors.New("access denied")
	e := NewS3(fake, "bucket", "")

	err := e.SetItem("k", "v")
	require.Error(t, err)

	var se *merr.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, merr.CodeStorageWrite, se.Code)
	assert.Contains(t, err.Error(), "access denied")
}
