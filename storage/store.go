// Package storage persists identity vault blobs keyed by secure element id.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/afero"
)

var logger = log.New("package", "imkey/storage")

const (
	filePerm = 0o600
	dirPerm  = 0o700
)

var (
	ErrNotFound  = errors.New("storage: not found")
	ErrInvalidID = errors.New("storage: invalid id")
)

// Store is a blob store keyed by secure element id.
type Store interface {
	Get(id string) ([]byte, error)
	Put(id string, data []byte) error
	Delete(id string) error
	Exists(id string) (bool, error)
}

// FileStore keeps one file per id under dir.
type FileStore struct {
	fs  afero.Fs
	dir string
}

func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{
		fs:  fs,
		dir: dir,
	}
}

// NewOsFileStore returns a FileStore on the operating system file system.
func NewOsFileStore(dir string) *FileStore {
	return NewFileStore(afero.NewOsFs(), dir)
}

func (s *FileStore) Get(id string) ([]byte, error) {
	filename, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to read %s: %w", filename, err)
	}

	return data, nil
}

// Put replaces the blob of id. The data is written to a temporary file that
// is renamed over the previous one.
func (s *FileStore) Put(id string, data []byte) error {
	filename, err := s.path(id)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("storage: failed to create directory %s: %w", s.dir, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, "."+id+".tmp")
	if err != nil {
		return fmt.Errorf("storage: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("storage: failed to write %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("storage: failed to close %s: %w", tmpName, err)
	}

	if err := s.fs.Chmod(tmpName, filePerm); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("storage: failed to chmod %s: %w", tmpName, err)
	}

	if err := s.fs.Rename(tmpName, filename); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("storage: failed to rename %s: %w", tmpName, err)
	}

	logger.Debug("vault stored", "file", filename, "size", len(data))
	return nil
}

func (s *FileStore) Delete(id string) error {
	filename, err := s.path(id)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: failed to delete %s: %w", filename, err)
	}

	return nil
}

func (s *FileStore) Exists(id string) (bool, error) {
	filename, err := s.path(id)
	if err != nil {
		return false, err
	}

	return afero.Exists(s.fs, filename)
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return filepath.Join(s.dir, id), nil
}
