// Package storage keeps uploaded files under the media root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DocumentsDir is the namespace uploaded identity documents are stored under
const DocumentsDir = "documents"

// ErrInvalidPath is returned for paths that would escape the media root
var ErrInvalidPath = errors.New("invalid storage path")

// Storage stores, opens and removes uploaded files by relative path
type Storage interface {
	Save(ctx context.Context, dir string, fh *multipart.FileHeader) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// LocalStorage writes files below a directory on the local filesystem
type LocalStorage struct {
	root string
}

// NewLocalStorage creates the media root if needed
func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

// Save copies the upload into dir under a random name keeping its extension, and returns
// the slash separated path relative to the media root.
func (s *LocalStorage) Save(_ context.Context, dir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := path.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	full, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(full)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("close file: %w", err)
	}
	return name, nil
}

// Open returns the stored file; a missing file is reported as os.ErrNotExist
func (s *LocalStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	full, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete removes a stored file; a file that is already gone is not an error
func (s *LocalStorage) Delete(_ context.Context, name string) error {
	full, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) resolve(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
