package nyaadle

import (
	"io"
	"os"
	"path/filepath"
)

// Storage abstracts a flat directory of downloaded files.
// Names are bare file names as returned by RemoteFileName.
type Storage interface {
	// Exists reports whether name already has content.
	Exists(name string) bool
	// Put writes the content of r to name. The write is atomic:
	// no partial file is visible to concurrent readers.
	Put(name string, r io.Reader) error
}

// LocalStorage is the default Storage implementation backed by a directory
// on the OS filesystem.
type LocalStorage struct {
	rootDir string
}

// NewLocalStorage returns a LocalStorage rooted at dir.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{rootDir: dir}
}

// Dir returns the root directory.
func (s *LocalStorage) Dir() string {
	return s.rootDir
}

// Provision creates the root directory if it does not exist.
func (s *LocalStorage) Provision() error {
	return os.MkdirAll(s.rootDir, 0750)
}

func (s *LocalStorage) abs(name string) string {
	return filepath.Join(s.rootDir, filepath.Base(name))
}

// Exists reports whether name already exists in storage.
func (s *LocalStorage) Exists(name string) bool {
	_, err := os.Stat(s.abs(name))
	return err == nil
}

// Put streams r into name atomically via a temp file + rename.
func (s *LocalStorage) Put(name string, r io.Reader) error {
	fullPath := s.abs(name)
	if err := os.MkdirAll(s.rootDir, 0750); err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(s.rootDir, ".nyaadle-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpName) // no-op if already renamed
	}()
	if _, err := io.Copy(tmpFile, r); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, fullPath) //nolint:gosec // G703: name is reduced to its base
}
