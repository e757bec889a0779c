// Package fsstore implements the ProfileDirs port on a filesystem.
package fsstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProfileDirs = (*Dirs)(nil)

// ProfilesDir is the subdirectory of the storage root holding profile directories.
const ProfilesDir = "profiles"

const dirPerm = 0o755

// Dirs manages <storageRoot>/profiles/<name> directories. Every name passes
// through model.SanitizeName, so no directory outside ProfilesDir is touched.
type Dirs struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
}

// NewDirs creates a Dirs on the operating system filesystem.
func NewDirs(storageRoot string, logger *slog.Logger) *Dirs {
	return NewDirsWithFs(afero.NewOsFs(), storageRoot, logger)
}

// NewDirsWithFs creates a Dirs on an arbitrary afero filesystem.
func NewDirsWithFs(fsys afero.Fs, storageRoot string, logger *slog.Logger) *Dirs {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dirs{
		fs:     fsys,
		root:   filepath.Join(storageRoot, ProfilesDir),
		logger: logger,
	}
}

// Root returns the directory that holds all profile directories.
func (d *Dirs) Root() string { return d.root }

// Path returns the directory for name and whether name is usable at all.
func (d *Dirs) Path(name any) (string, bool) {
	safe := model.SanitizeName(name)
	if safe == "" {
		return "", false
	}

	p := filepath.Join(d.root, safe)
	if rel, err := filepath.Rel(d.root, p); err != nil || rel != safe {
		return "", false
	}
	return p, true
}

// Create makes the profile directory, including parents. An existing
// directory is not an error. A name that sanitizes to "" does nothing.
func (d *Dirs) Create(name string) error {
	p, ok := d.Path(name)
	if !ok {
		d.logger.Debug("skipping profile directory create for unusable name", "name", name)
		return nil
	}

	if err := d.fs.MkdirAll(p, dirPerm); err != nil {
		return fmt.Errorf("create profile directory %s: %w", p, err)
	}
	return nil
}

// Delete removes the profile directory and its contents. A missing directory
// is not an error. A name that sanitizes to "" does nothing.
func (d *Dirs) Delete(name string) error {
	p, ok := d.Path(name)
	if !ok {
		d.logger.Debug("skipping profile directory delete for unusable name", "name", name)
		return nil
	}

	if err := d.fs.RemoveAll(p); err != nil {
		return fmt.Errorf("remove profile directory %s: %w", p, err)
	}
	return nil
}

// List returns the sorted names of existing profile directories. A missing
// profiles root yields an empty list.
func (d *Dirs) List() ([]string, error) {
	entries, err := afero.ReadDir(d.fs, d.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list profile directories in %s: %w", d.root, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
