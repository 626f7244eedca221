package pds

import (
	"context"
	"errors"
	"os"
	"path"
	"sync"

	"github.com/spf13/afero"
)

// aferoBackend serves a Backend from an afero filesystem. Parent directories
// must exist for WriteFile and Mkdir, matching a real filesystem even when
// the afero implementation would create them implicitly.
type aferoBackend struct {
	fs afero.Fs
}

var _ Backend = (*aferoBackend)(nil)

func (b *aferoBackend) Stat(_ context.Context, p string) (*FileInfo, error) {
	info, err := b.fs.Stat(p)
	if err != nil {
		return nil, wrapOSError("stat", p, err)
	}
	return &FileInfo{Name: info.Name(), IsDir: info.IsDir(), Size: info.Size()}, nil
}

func (b *aferoBackend) ReadFile(_ context.Context, p string) ([]byte, error) {
	data, err := afero.ReadFile(b.fs, p)
	if err != nil {
		return nil, wrapOSError("open", p, err)
	}
	return data, nil
}

func (b *aferoBackend) WriteFile(_ context.Context, p string, data []byte) error {
	if err := b.requireDir("open", path.Dir(p)); err != nil {
		return err
	}
	if err := afero.WriteFile(b.fs, p, data, 0o644); err != nil {
		return wrapOSError("open", p, err)
	}
	return nil
}

func (b *aferoBackend) Mkdir(_ context.Context, p string) error {
	if err := b.requireDir("mkdir", path.Dir(p)); err != nil {
		return err
	}
	if err := b.fs.Mkdir(p, 0o755); err != nil {
		return wrapOSError("mkdir", p, err)
	}
	return nil
}

func (b *aferoBackend) Readdir(_ context.Context, p string) ([]string, error) {
	infos, err := afero.ReadDir(b.fs, p)
	if err != nil {
		return nil, wrapOSError("scandir", p, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func (b *aferoBackend) requireDir(op, dir string) error {
	info, err := b.fs.Stat(dir)
	if err != nil {
		return wrapOSError(op, dir, err)
	}
	if !info.IsDir() {
		return &PathError{Op: op, Path: dir, Code: "ENOTDIR", Err: errors.New("not a directory")}
	}
	return nil
}

func wrapOSError(op, p string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return notExist(op, p)
	case errors.Is(err, os.ErrExist):
		return &PathError{Op: op, Path: p, Code: "EEXIST", Err: err}
	default:
		return &PathError{Op: op, Path: p, Code: "EIO", Err: err}
	}
}

// MemoryProvider keeps every account's documents in one process-wide
// in-memory filesystem.
type MemoryProvider struct {
	once sync.Once
	fs   afero.Fs
}

// NewMemoryProvider creates an empty in-memory store.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

func (p *MemoryProvider) Name() string { return "memory" }

func (p *MemoryProvider) Description() Description {
	return Description{Name: "In memory provider"}
}

func (p *MemoryProvider) Open(context.Context, []byte) (Backend, error) {
	p.once.Do(func() {
		p.fs = afero.NewMemMapFs()
	})
	return &aferoBackend{fs: p.fs}, nil
}

// LocalProvider stores documents on the operator's disk below root.
type LocalProvider struct {
	root string
}

// NewLocalProvider creates a provider rooted at root, creating it if needed.
func NewLocalProvider(root string) (*LocalProvider, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &PathError{Op: "mkdir", Path: root, Code: "EIO", Err: err}
	}
	return &LocalProvider{root: root}, nil
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Description() Description {
	return Description{Name: "Local disk"}
}

func (p *LocalProvider) Open(context.Context, []byte) (Backend, error) {
	return &aferoBackend{fs: afero.NewBasePathFs(afero.NewOsFs(), p.root)}, nil
}
