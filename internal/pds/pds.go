// Package pds adapts personal data store backends to one directory-oriented
// contract and selects a backend by provider name.
package pds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CodeNotExist is the code carried by errors for missing entries.
const CodeNotExist = "ENOENT"

// ErrNotExist is matched by errors.Is for every missing entry, whatever the backend.
var ErrNotExist = errors.New("no such file or directory")

// FileInfo describes a stat result.
type FileInfo struct {
	Name  string
	IsDir bool
	Size  int64
}

// Backend is the capability set every store implements. Paths are absolute
// and slash separated. Implementations must be safe for concurrent use.
type Backend interface {
	Stat(ctx context.Context, path string) (*FileInfo, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Mkdir(ctx context.Context, path string) error
	Readdir(ctx context.Context, path string) ([]string, error)
}

// PathError is a backend failure with the backend's code and status kept.
type PathError struct {
	Op     string
	Path   string
	Code   string
	Status int
	Err    error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func notExist(op, path string) error {
	return &PathError{Op: op, Path: path, Code: CodeNotExist, Err: ErrNotExist}
}

// IsNotExist reports whether err means the entry does not exist.
func IsNotExist(err error) bool {
	if errors.Is(err, ErrNotExist) {
		return true
	}
	var pe *PathError
	return errors.As(err, &pe) && pe.Code == CodeNotExist
}

// AccessToken extracts the bearer token from stored PDS credentials, which
// are either the raw token or a JSON object with an apiKey field.
func AccessToken(credentials []byte) string {
	trimmed := strings.TrimSpace(string(credentials))
	if strings.HasPrefix(trimmed, "{") {
		var creds struct {
			APIKey string `json:"apiKey"`
		}
		if err := json.Unmarshal([]byte(trimmed), &creds); err == nil {
			return creds.APIKey
		}
	}
	return trimmed
}
