package datalayer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// LocalStore serves sounds from a directory on disk.
type LocalStore struct {
	dir string
	ext string
}

func NewLocalStore(dir, ext string) *LocalStore {
	return &LocalStore{dir: dir, ext: ext}
}

var _ AudioStore = (*LocalStore)(nil)

func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio directory %s: %w", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := soundName(entry.Name(), s.ext); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *LocalStore) Fetch(ctx context.Context, name, scratchDir string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrSoundNotFound, name)
	}
	fileName := name + s.ext

	src, err := os.Open(filepath.Join(s.dir, fileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrSoundNotFound, name)
		}
		return "", fmt.Errorf("failed to open sound %q: %w", name, err)
	}
	defer src.Close()

	return copyIntoScratch(src, scratchDir, fileName)
}

// copyIntoScratch writes r to a new file in scratchDir that keeps the
// extension of fileName. Every call gets its own file, so concurrent fetches
// of the same sound never share or delete each other's copy.
func copyIntoScratch(r io.Reader, scratchDir, fileName string) (path string, err error) {
	tmp, err := os.CreateTemp(scratchDir, "fetch-*"+filepath.Ext(fileName))
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to copy sound: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close scratch file: %w", err)
	}
	return tmp.Name(), nil
}
