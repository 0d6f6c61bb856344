// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package storage maps clip ids to files in the storage directory and evicts them by age.
//
// The directory is the only source of truth: there is no persisted index. Canonical files are
// named {id}.mp4. Temporary artifacts carry the id somewhere in their name so ownership can always
// be derived from a directory entry.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ManuGH/phantomclip/internal/clip"
	"github.com/google/uuid"
)

// Ext is the extension of every canonical clip file.
const Ext = ".mp4"

// FailedPrefix marks the kept original of a failed job. Such files are never served but remain
// owned by their id, so the sweeper expires them like any other entry.
const FailedPrefix = ".failed-"

var idPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// ValidID reports whether id is a canonical lower-case UUID.
func ValidID(id string) bool {
	if len(id) != 36 || strings.ToLower(id) != id {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// IDFromName extracts the owning id from any entry name in the storage directory.
func IDFromName(name string) (string, bool) {
	id := idPattern.FindString(name)
	return id, id != ""
}

// Registry tracks which ids exist on disk and which are leased by in-flight jobs.
type Registry struct {
	dir string

	mu     sync.Mutex
	leases map[string]int
}

// NewRegistry creates the storage directory if needed.
func NewRegistry(dir string) (*Registry, error) {
	if dir == "" {
		return nil, errors.New("storage dir must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	r := &Registry{dir: abs, leases: make(map[string]int)}
	if err := r.EnsureDir(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) Dir() string { return r.dir }

// EnsureDir creates the storage directory. It is idempotent.
func (r *Registry) EnsureDir() error {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("create storage dir %s: %w", r.dir, err)
	}
	return nil
}

// NewID allocates a fresh id. Ids are random UUIDs and never reused.
func (r *Registry) NewID() string {
	return uuid.NewString()
}

// PathFor returns the canonical path for id without checking that it exists.
func (r *Registry) PathFor(id string) (string, error) {
	if !ValidID(id) {
		return "", fmt.Errorf("%w: malformed id %q", clip.ErrNotFound, id)
	}
	return filepath.Join(r.dir, id+Ext), nil
}

// Lookup returns the stored file for id, or clip.ErrNotFound for malformed, unknown or swept ids.
func (r *Registry) Lookup(id string) (clip.StoredFile, error) {
	path, err := r.PathFor(id)
	if err != nil {
		return clip.StoredFile{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return clip.StoredFile{}, fmt.Errorf("%w: %s", clip.ErrNotFound, id)
		}
		return clip.StoredFile{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return clip.StoredFile{}, fmt.Errorf("%w: %s", clip.ErrNotFound, id)
	}
	return clip.StoredFile{ID: id, Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// List returns every canonical file, ordered by id.
func (r *Registry) List() ([]clip.StoredFile, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage dir: %w", err)
	}
	var out []clip.StoredFile
	for _, e := range entries {
		name := e.Name()
		id := strings.TrimSuffix(name, Ext)
		if e.IsDir() || !strings.HasSuffix(name, Ext) || !ValidID(id) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		out = append(out, clip.StoredFile{
			ID:      id,
			Path:    filepath.Join(r.dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Acquire leases id so the sweeper leaves its files alone. Leases are counted; the returned
// release func is safe to call more than once.
func (r *Registry) Acquire(id string) (release func()) {
	r.mu.Lock()
	r.leases[id]++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.leases[id] <= 1 {
				delete(r.leases, id)
				return
			}
			r.leases[id]--
		})
	}
}

// Leased reports whether any holder currently leases id.
func (r *Registry) Leased(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leases[id] > 0
}

// Remove deletes the canonical file of id. A missing file is not an error.
func (r *Registry) Remove(id string) error {
	path, err := r.PathFor(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Quarantine moves the canonical file of id to {dir}/.failed-{id}.mp4 and returns the new path.
// A missing file yields an empty path and no error.
func (r *Registry) Quarantine(id string) (string, error) {
	path, err := r.PathFor(id)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(r.dir, FailedPrefix+id+Ext)
	if err := os.Rename(path, dest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("quarantine %s: %w", path, err)
	}
	return dest, nil
}
