package pds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_RequiresParent(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryProvider().Open(ctx, nil)
	require.NoError(t, err)

	err = backend.WriteFile(ctx, "/missing/f.json", []byte("x"))
	assert.True(t, IsNotExist(err))

	err = backend.Mkdir(ctx, "/missing/dir")
	assert.True(t, IsNotExist(err))
}

func TestMemoryBackend_OutputFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := NewMemoryProvider()
	backend, err := provider.Open(ctx, nil)
	require.NoError(t, err)
	fs := NewFS(backend)

	require.NoError(t, fs.OutputFile(ctx, "/data/c/d/a/data.json", []byte(`{"x":1}`)))

	data, err := fs.ReadFile(ctx, "/data/c/d/a/data.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(data))

	names, err := fs.Readdir(ctx, "/data/c/d")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)

	info, err := fs.Stat(ctx, "/data/c")
	require.NoError(t, err)
	assert.True(t, info.IsDir)

	// A second Open shares the same store.
	again, err := provider.Open(ctx, nil)
	require.NoError(t, err)
	_, err = again.ReadFile(ctx, "/data/c/d/a/data.json")
	assert.NoError(t, err)
}

func TestMemoryBackend_MissingFile(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryProvider().Open(ctx, nil)
	require.NoError(t, err)

	_, err = backend.ReadFile(ctx, "/nope.json")
	assert.True(t, IsNotExist(err))

	_, err = backend.Stat(ctx, "/nope")
	assert.True(t, IsNotExist(err))
}

func TestLocalBackend_WritesBelowRoot(t *testing.T) {
	ctx := context.Background()
	provider, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	backend, err := provider.Open(ctx, nil)
	require.NoError(t, err)

	fs := NewFS(backend)
	require.NoError(t, fs.OutputFile(ctx, "/acc/data/x.txt", []byte("hello")))

	data, err := fs.ReadFile(ctx, "/acc/data/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
