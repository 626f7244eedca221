package pds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"golang.org/x/oauth2"
)

const dropboxAuthURL = "https://www.dropbox.com/oauth2/authorize"

// dropboxAPI is the subset of files.Client the backend uses.
type dropboxAPI interface {
	GetMetadata(arg *files.GetMetadataArg) (files.IsMetadata, error)
	Download(arg *files.DownloadArg) (*files.FileMetadata, io.ReadCloser, error)
	Upload(arg *files.UploadArg, content io.Reader) (*files.FileMetadata, error)
	CreateFolderV2(arg *files.CreateFolderArg) (*files.CreateFolderResult, error)
	ListFolder(arg *files.ListFolderArg) (*files.ListFolderResult, error)
	ListFolderContinue(arg *files.ListFolderContinueArg) (*files.ListFolderResult, error)
}

// DropboxProvider stores documents in the account owner's Dropbox app folder.
type DropboxProvider struct {
	oauth *oauth2.Config
	// newClient is replaced in tests.
	newClient func(token string) dropboxAPI
}

// NewDropboxProvider creates the provider for an OAuth application. host is
// the Dropbox API base used for token exchange.
func NewDropboxProvider(clientID, clientSecret, redirectURL, host string) *DropboxProvider {
	return &DropboxProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   dropboxAuthURL,
				TokenURL:  strings.TrimSuffix(host, "/") + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		newClient: func(token string) dropboxAPI {
			return files.New(dropbox.Config{Token: token, LogLevel: dropbox.LogOff})
		},
	}
}

func (p *DropboxProvider) Name() string { return "dropbox" }

func (p *DropboxProvider) Description() Description {
	return Description{
		Name: "Dropbox",
		Link: p.oauth.AuthCodeURL("dropbox"),
		Img:  "/images/icons8-dropbox-50.png",
	}
}

// Authorize exchanges an OAuth code for credentials to store on the account.
func (p *DropboxProvider) Authorize(ctx context.Context, code string) ([]byte, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("dropbox token exchange failed: %w", err)
	}
	return json.Marshal(map[string]string{"apiKey": token.AccessToken})
}

func (p *DropboxProvider) Open(_ context.Context, credentials []byte) (Backend, error) {
	token := AccessToken(credentials)
	if token == "" {
		return nil, errors.New("dropbox access token is required")
	}
	return &dropboxBackend{client: p.newClient(token)}, nil
}

type dropboxBackend struct {
	client dropboxAPI
}

var _ Backend = (*dropboxBackend)(nil)

// dropboxPath maps an absolute path to the API form, where the root is "".
func dropboxPath(p string) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return ""
	}
	return p
}

func (b *dropboxBackend) Stat(_ context.Context, p string) (*FileInfo, error) {
	if dropboxPath(p) == "" {
		return &FileInfo{Name: "/", IsDir: true}, nil
	}
	meta, err := b.client.GetMetadata(files.NewGetMetadataArg(dropboxPath(p)))
	if err != nil {
		return nil, dropboxError("stat", p, err)
	}
	switch m := meta.(type) {
	case *files.FileMetadata:
		return &FileInfo{Name: m.Name, Size: int64(m.Size)}, nil
	case *files.FolderMetadata:
		return &FileInfo{Name: m.Name, IsDir: true}, nil
	default:
		return nil, notExist("stat", p)
	}
}

func (b *dropboxBackend) ReadFile(_ context.Context, p string) ([]byte, error) {
	_, content, err := b.client.Download(files.NewDownloadArg(dropboxPath(p)))
	if err != nil {
		return nil, dropboxError("open", p, err)
	}
	defer content.Close()

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, dropboxError("read", p, err)
	}
	return data, nil
}

func (b *dropboxBackend) WriteFile(ctx context.Context, p string, data []byte) error {
	if _, err := b.Stat(ctx, path.Dir(p)); err != nil {
		return err
	}
	arg := files.NewUploadArg(dropboxPath(p))
	arg.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: files.WriteModeOverwrite}}
	if _, err := b.client.Upload(arg, bytes.NewReader(data)); err != nil {
		return dropboxError("write", p, err)
	}
	return nil
}

func (b *dropboxBackend) Mkdir(ctx context.Context, p string) error {
	if _, err := b.Stat(ctx, path.Dir(p)); err != nil {
		return err
	}
	if _, err := b.client.CreateFolderV2(files.NewCreateFolderArg(dropboxPath(p))); err != nil {
		return dropboxError("mkdir", p, err)
	}
	return nil
}

func (b *dropboxBackend) Readdir(_ context.Context, p string) ([]string, error) {
	res, err := b.client.ListFolder(files.NewListFolderArg(dropboxPath(p)))
	if err != nil {
		return nil, dropboxError("scandir", p, err)
	}

	var names []string
	for {
		for _, entry := range res.Entries {
			switch m := entry.(type) {
			case *files.FileMetadata:
				names = append(names, m.Name)
			case *files.FolderMetadata:
				names = append(names, m.Name)
			}
		}
		if !res.HasMore {
			break
		}
		res, err = b.client.ListFolderContinue(files.NewListFolderContinueArg(res.Cursor))
		if err != nil {
			return nil, dropboxError("scandir", p, err)
		}
	}
	return names, nil
}

// The SDK surfaces path errors as tagged summaries such as
// "path/not_found/..".
func dropboxError(op, p string, err error) error {
	if strings.Contains(err.Error(), "not_found") {
		return notExist(op, p)
	}
	return &PathError{Op: op, Path: p, Code: "EIO", Err: err}
}
