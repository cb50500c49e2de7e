package keyring

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

const fileMode = 0600

// FileStore keeps the secret in a single 0600 file. Writes go through a
// temporary file and a rename so a crash never leaves a truncated secret.
type FileStore struct {
	fs   afero.Fs
	dir  string
	name string
}

func NewFileStore(fs afero.Fs, dir, name string) *FileStore {
	return &FileStore{fs: fs, dir: dir, name: name}
}

func (f *FileStore) path() string {
	return path.Join(f.dir, f.name)
}

func (f *FileStore) Get() (string, error) {
	data, err := afero.ReadFile(f.fs, f.path())
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", ErrNotFound
	}
	return s, nil
}

func (f *FileStore) Set(secret string) error {
	if err := f.fs.MkdirAll(f.dir, 0700); err != nil {
		return fmt.Errorf("create secret dir: %w", err)
	}
	tmp, err := afero.TempFile(f.fs, f.dir, "."+f.name+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(secret); err != nil {
		tmp.Close()
		f.fs.Remove(tmpPath)
		return fmt.Errorf("write secret: %w", err)
	}
	if err := tmp.Close(); err != nil {
		f.fs.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := f.fs.Chmod(tmpPath, fileMode); err != nil {
		f.fs.Remove(tmpPath)
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := f.fs.Rename(tmpPath, f.path()); err != nil {
		f.fs.Remove(tmpPath)
		return fmt.Errorf("rename secret file: %w", err)
	}
	return nil
}

func (f *FileStore) Delete() error {
	err := f.fs.Remove(f.path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
