package pds

import (
	"bytes"
	"context"
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
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	delimiter := aws.ToString(in.Delimiter)

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := map[string]bool{}
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func newS3TestBackend(t *testing.T, fake *fakeS3) Backend {
	t.Helper()
	provider := NewS3Provider("eu-north-1", "", "default-bucket")
	provider.newClient = func(context.Context, S3Credentials) (s3API, error) {
		return fake, nil
	}
	backend, err := provider.Open(context.Background(), []byte(`{"accessKeyId":"id","secretAccessKey":"secret","prefix":"/user-1/"}`))
	require.NoError(t, err)
	return backend
}

func TestS3Backend_OutputFileCreatesMarkers(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	fs := NewFS(newS3TestBackend(t, fake))

	require.NoError(t, fs.OutputFile(ctx, "/data/c/doc.json", []byte(`{"a":1}`)))

	assert.Contains(t, fake.objects, "user-1/data/")
	assert.Contains(t, fake.objects, "user-1/data/c/")
	assert.Equal(t, []byte(`{"a":1}`), fake.objects["user-1/data/c/doc.json"])

	data, err := fs.ReadFile(ctx, "/data/c/doc.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	info, err := fs.Stat(ctx, "/data/c")
	require.NoError(t, err)
	assert.True(t, info.IsDir)

	info, err = fs.Stat(ctx, "/data/c/doc.json")
	require.NoError(t, err)
	assert.False(t, info.IsDir)
	assert.EqualValues(t, 7, info.Size)
}

func TestS3Backend_MissingEntries(t *testing.T) {
	ctx := context.Background()
	backend := newS3TestBackend(t, &fakeS3{objects: map[string][]byte{}})

	_, err := backend.ReadFile(ctx, "/nope.json")
	assert.True(t, IsNotExist(err))

	_, err = backend.Stat(ctx, "/nope")
	assert.True(t, IsNotExist(err))

	err = backend.WriteFile(ctx, "/nope/doc.json", []byte("x"))
	assert.True(t, IsNotExist(err))
}

func TestS3Backend_Readdir(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{
		"user-1/data/":          {},
		"user-1/data/a/":        {},
		"user-1/data/a/x.json":  []byte("1"),
		"user-1/data/file.json": []byte("2"),
	}}
	backend := newS3TestBackend(t, fake)

	names, err := backend.Readdir(ctx, "/data")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "file.json"}, names)
}

func TestS3Provider_RequiresBucket(t *testing.T) {
	provider := NewS3Provider("eu-north-1", "", "")
	_, err := provider.Open(context.Background(), []byte(`{"accessKeyId":"id"}`))
	assert.ErrorContains(t, err, "bucket")
}
