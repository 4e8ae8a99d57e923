// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ManuGH/headless-mpv/internal/fsutil"
	"github.com/ManuGH/headless-mpv/internal/log"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

const dirPerm = 0o750

// Library is a media directory.
type Library struct {
	dir    string
	logger zerolog.Logger
}

// New returns a Library rooted at dir. The directory is created on first use.
func New(dir string) *Library {
	return &Library{dir: filepath.Clean(dir), logger: log.WithComponent("library")}
}

// Dir returns the media directory.
func (l *Library) Dir() string { return l.dir }

// List returns the supported media files, sorted case-insensitively by name.
func (l *Library) List() ([]Item, error) {
	if err := os.MkdirAll(l.dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read media dir: %w", err)
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsSupported(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		items = append(items, Item{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

// Path resolves name to a path inside the media directory.
func (l *Library) Path(name string) (string, error) {
	safe := SecureFilename(name)
	if safe == "" {
		return "", ErrInvalidName
	}
	path := filepath.Join(l.dir, safe)
	if filepath.Dir(path) != l.dir {
		return "", ErrInvalidName
	}
	return path, nil
}

// Lookup resolves name and checks that the file exists. A symlink pointing
// outside the media directory is rejected as an invalid name.
func (l *Library) Lookup(name string) (string, error) {
	path, err := l.Path(name)
	if err != nil {
		return "", err
	}
	if _, err := fsutil.Confine(l.dir, filepath.Base(path)); err != nil {
		if errors.Is(err, fsutil.ErrEscapesRoot) {
			return "", ErrInvalidName
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err := fsutil.IsRegularFile(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	return path, nil
}

// Save stores r under the sanitised name. At most limit bytes are accepted;
// a larger body fails with ErrTooLarge and leaves no partial file behind.
// It returns the stored name.
func (l *Library) Save(name string, r io.Reader, limit int64) (string, error) {
	path, err := l.Path(name)
	if err != nil {
		return "", err
	}
	if !IsSupported(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedExtension, filepath.Ext(path))
	}
	if err := os.MkdirAll(l.dir, dirPerm); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("create pending upload: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			l.logger.Debug().Err(err).Str(log.FieldPath, path).Msg("cleanup pending upload")
		}
	}()

	reader := r
	if limit > 0 {
		reader = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(pending, reader)
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if limit > 0 && n > limit {
		return "", ErrTooLarge
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("commit upload: %w", err)
	}

	stored := filepath.Base(path)
	l.logger.Info().
		Str(log.FieldEvent, "library.uploaded").
		Str(log.FieldFile, stored).
		Int64("bytes", n).
		Msg("file uploaded")
	return stored, nil
}

// Delete removes the named file.
func (l *Library) Delete(name string) error {
	path, err := l.Lookup(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return fmt.Errorf("delete %s: %w", filepath.Base(path), err)
	}
	l.logger.Info().
		Str(log.FieldEvent, "library.deleted").
		Str(log.FieldFile, filepath.Base(path)).
		Msg("file deleted")
	return nil
}
