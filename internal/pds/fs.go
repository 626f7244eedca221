package pds

import (
	"context"
	"path"
)

// FS wraps a Backend with the derived operations Mkdirp and OutputFile.
type FS struct {
	Backend
}

// NewFS wraps backend.
func NewFS(backend Backend) *FS {
	return &FS{Backend: backend}
}

// Mkdirp ensures every directory of p exists. Existence is checked leaf to
// root; directories are created root to leaf.
func (fs *FS) Mkdirp(ctx context.Context, p string) error {
	p = path.Clean(p)
	if p == "/" || p == "." {
		return nil
	}
	if _, err := fs.Stat(ctx, p); err == nil {
		return nil
	}
	if parent := path.Dir(p); parent != p {
		if err := fs.Mkdirp(ctx, parent); err != nil {
			return err
		}
	}
	return fs.Mkdir(ctx, p)
}

// OutputFile writes data to p, creating missing parent directories. The
// write is tried first; only on failure are directories created and the
// write retried once. A second failure is returned.
func (fs *FS) OutputFile(ctx context.Context, p string, data []byte) error {
	if err := fs.WriteFile(ctx, p, data); err == nil {
		return nil
	}
	if err := fs.Mkdirp(ctx, path.Dir(p)); err != nil {
		return err
	}
	return fs.WriteFile(ctx, p, data)
}
