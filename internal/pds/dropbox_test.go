package pds

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDropbox struct {
	folders map[string]bool
	files   map[string][]byte
	modes   []string
}

func newFakeDropbox() *fakeDropbox {
	return &fakeDropbox{folders: map[string]bool{}, files: map[string][]byte{}}
}

var errDropboxNotFound = errors.New("path/not_found/")

func (f *fakeDropbox) GetMetadata(arg *files.GetMetadataArg) (files.IsMetadata, error) {
	if f.folders[arg.Path] {
		m := &files.FolderMetadata{}
		m.Name = path.Base(arg.Path)
		return m, nil
	}
	if data, ok := f.files[arg.Path]; ok {
		m := &files.FileMetadata{Size: uint64(len(data))}
		m.Name = path.Base(arg.Path)
		return m, nil
	}
	return nil, errDropboxNotFound
}

func (f *fakeDropbox) Download(arg *files.DownloadArg) (*files.FileMetadata, io.ReadCloser, error) {
	data, ok := f.files[arg.Path]
	if !ok {
		return nil, nil, errDropboxNotFound
	}
	return &files.FileMetadata{}, io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeDropbox) Upload(arg *files.UploadArg, content io.Reader) (*files.FileMetadata, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.modes = append(f.modes, arg.Mode.Tag)
	f.files[arg.Path] = data
	return &files.FileMetadata{}, nil
}

func (f *fakeDropbox) CreateFolderV2(arg *files.CreateFolderArg) (*files.CreateFolderResult, error) {
	f.folders[arg.Path] = true
	return &files.CreateFolderResult{}, nil
}

func (f *fakeDropbox) ListFolder(arg *files.ListFolderArg) (*files.ListFolderResult, error) {
	if arg.Path != "" && !f.folders[arg.Path] {
		return nil, errDropboxNotFound
	}
	var entries []files.IsMetadata
	for p := range f.files {
		if path.Dir(p) == arg.Path {
			m := &files.FileMetadata{}
			m.Name = path.Base(p)
			entries = append(entries, m)
		}
	}
	return &files.ListFolderResult{Entries: entries, Cursor: "c1", HasMore: true}, nil
}

func (f *fakeDropbox) ListFolderContinue(*files.ListFolderContinueArg) (*files.ListFolderResult, error) {
	m := &files.FolderMetadata{}
	m.Name = "later"
	return &files.ListFolderResult{Entries: []files.IsMetadata{m}}, nil
}

func newDropboxTestProvider(fake *fakeDropbox, host string) *DropboxProvider {
	provider := NewDropboxProvider("app-key", "app-secret", "http://localhost:3000/api/pds/dropbox/callback", host)
	provider.newClient = func(string) dropboxAPI { return fake }
	return provider
}

func TestDropboxBackend_OutputFile(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDropbox()
	backend, err := newDropboxTestProvider(fake, "https://api.dropbox.com").Open(ctx, []byte(`{"apiKey":"tok"}`))
	require.NoError(t, err)
	fs := NewFS(backend)

	require.NoError(t, fs.OutputFile(ctx, "/data/c/doc.json", []byte("{}")))

	assert.True(t, fake.folders["/data"])
	assert.True(t, fake.folders["/data/c"])
	assert.Equal(t, []byte("{}"), fake.files["/data/c/doc.json"])
	assert.Equal(t, []string{files.WriteModeOverwrite}, fake.modes)

	data, err := fs.ReadFile(ctx, "/data/c/doc.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	names, err := fs.Readdir(ctx, "/data/c")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.json", "later"}, names)
}

func TestDropboxBackend_NotFound(t *testing.T) {
	ctx := context.Background()
	backend, err := newDropboxTestProvider(newFakeDropbox(), "https://api.dropbox.com").Open(ctx, []byte("tok"))
	require.NoError(t, err)

	_, err = backend.ReadFile(ctx, "/missing.json")
	assert.True(t, IsNotExist(err))

	info, err := backend.Stat(ctx, "/")
	require.NoError(t, err)
	assert.True(t, info.IsDir)
}

func TestDropboxProvider_RequiresToken(t *testing.T) {
	_, err := newDropboxTestProvider(newFakeDropbox(), "").Open(context.Background(), nil)
	assert.Error(t, err)
}

func TestDropboxProvider_DescriptionAndAuthorize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "app-key", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"granted","token_type":"bearer"}`))
	}))
	defer server.Close()

	provider := newDropboxTestProvider(newFakeDropbox(), server.URL)

	desc := provider.Description()
	assert.Equal(t, "Dropbox", desc.Name)
	assert.Equal(t, "/images/icons8-dropbox-50.png", desc.Img)
	assert.Contains(t, desc.Link, "https://www.dropbox.com/oauth2/authorize?")
	assert.Contains(t, desc.Link, "client_id=app-key")

	creds, err := provider.Authorize(context.Background(), "the-code")
	require.NoError(t, err)
	assert.JSONEq(t, `{"apiKey":"granted"}`, string(creds))
	assert.Equal(t, "granted", AccessToken(creds))
}
