// Package jsonfile implements repository.DocumentStore with one JSON file
// per collection, the layout the catalog application has always used:
//
//	data/users.json  → [{"username": "...", "favorites": [...]}, ...]
//	data/books.json  → [{"id": "...", "title": "...", ...}, ...]
//
// Every Store rewrites the whole file. There is no locking between
// processes: two writers racing on the same file means the later rename
// wins and the earlier write is lost.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sakif/book-favorites/internal/repository"
)

// Store maps collections to file paths.
type Store struct {
	paths map[repository.Collection]string
}

var _ repository.DocumentStore = (*Store)(nil)

// New creates a Store that keeps <collection>.json files inside dir.
// The directory is created if it doesn't exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("jsonfile: creating data dir %s: %w", dir, err)
	}
	return NewWithPaths(map[repository.Collection]string{
		repository.Users: filepath.Join(dir, "users.json"),
		repository.Books: filepath.Join(dir, "books.json"),
	}), nil
}

// NewWithPaths creates a Store with an explicit file per collection,
// for deployments where users and books live in different places.
func NewWithPaths(paths map[repository.Collection]string) *Store {
	copied := make(map[repository.Collection]string, len(paths))
	for c, p := range paths {
		copied[c] = p
	}
	return &Store{paths: copied}
}

// Load reads and decodes the whole collection file into v.
// A file that doesn't exist yet loads as an empty array.
func (s *Store) Load(ctx context.Context, c repository.Collection, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		data = []byte("[]")
	} else if err != nil {
		return fmt.Errorf("jsonfile: reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsonfile: decoding %s: %w", path, err)
	}
	return nil
}

// Store encodes v and replaces the collection file.
//
// The new content goes to a temp file in the same directory first and is
// then renamed over the old file, so a crash mid-write leaves either the
// old or the new document on disk, never half of one.
func (s *Store) Store(ctx context.Context, c repository.Collection, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(c)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding %s: %w", c, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("jsonfile: creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	// CreateTemp uses 0600; the catalog app reads these files too.
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: chmod %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("jsonfile: replacing %s: %w", path, err)
	}
	return nil
}

func (s *Store) path(c repository.Collection) (string, error) {
	p, ok := s.paths[c]
	if !ok {
		return "", fmt.Errorf("jsonfile: %w: %s", repository.ErrUnknownCollection, c)
	}
	return p, nil
}
