package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileCache stores each entry as <dir>/<key>.json.
type FileCache struct {
	dir string
}

// NewFileCache returns a FileCache rooted at dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// Path returns the file backing key.
func (fc *FileCache) Path(key string) string {
	return filepath.Join(fc.dir, key+".json")
}

func (fc *FileCache) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(fc.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", fc.Path(key), ErrCacheMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fc.Path(key), err)
	}
	return data, nil
}

// Set writes value to a temporary file and renames it over the entry, so a
// reader never sees a partially written file.
func (fc *FileCache) Set(_ context.Context, key string, value []byte) error {
	return WriteFile(fc.Path(key), value, 0o600)
}

func (fc *FileCache) Delete(_ context.Context, key string) error {
	err := os.Remove(fc.Path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", fc.Path(key), err)
	}
	return nil
}

func (fc *FileCache) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(fc.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fc *FileCache) Updated(_ context.Context, key string) (time.Time, error) {
	fi, err := os.Stat(fc.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, fmt.Errorf("%s: %w", fc.Path(key), ErrCacheMissing)
	}
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// WriteFile replaces the contents of path with data via a sibling temporary file.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("setting mode of %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
