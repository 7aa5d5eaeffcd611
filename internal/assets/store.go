// Package assets exposes the application's packaged, read-only asset store.
// The store is hierarchical and can list directories, and it opens assets in
// buffered mode so callers can hand the whole content to a loader in one piece.
package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
)

var (
	// ErrClosed is returned when a handle is closed twice.
	ErrClosed = errors.New("assets: handle already closed")
	// ErrNotDir is returned by OpenDir when the path names a regular asset.
	ErrNotDir = errors.New("assets: not a directory")
)

// Store is the platform asset manager.
type Store interface {
	// OpenDir opens a directory for listing. The root is "".
	OpenDir(dir string) (Dir, error)
	// OpenBuffered opens an asset with its whole content available in memory.
	OpenBuffered(name string) (Asset, error)
}

// Dir is an open directory listing.
type Dir interface {
	// Next returns the next entry name, or ok=false at the end of the listing.
	Next() (name string, ok bool)
	Close() error
}

// Asset is an asset opened in buffered mode.
type Asset interface {
	// Buffer returns a view over the asset content. It is only valid until Close.
	Buffer() []byte
	Len() int
	Close() error
}

// FSStore is a Store over an fs.FS: an embed.FS, os.DirFS, or the ZIP
// reader of a bundled binary.
type FSStore struct {
	fsys fs.FS
}

var _ Store = (*FSStore)(nil)

// NewFSStore creates a store reading from fsys.
func NewFSStore(fsys fs.FS) *FSStore {
	return &FSStore{fsys: fsys}
}

// FS returns the underlying filesystem.
func (s *FSStore) FS() fs.FS {
	return s.fsys
}

// CleanPath converts an asset path to the form fs.FS expects.
// "", "/" and "." all name the root.
func CleanPath(name string) string {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		return "."
	}
	return name
}

// OpenDir lists dir. Entries come back in the order fs.ReadDir reports them.
func (s *FSStore) OpenDir(dir string) (Dir, error) {
	name := CleanPath(dir)
	entries, err := fs.ReadDir(s.fsys, name)
	if err != nil {
		if info, statErr := fs.Stat(s.fsys, name); statErr == nil && !info.IsDir() {
			return nil, fmt.Errorf("open dir %q: %w", dir, ErrNotDir)
		}
		return nil, fmt.Errorf("open dir %q: %w", dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return &dirListing{names: names}, nil
}

// OpenBuffered reads the asset once into a buffer owned by the handle.
func (s *FSStore) OpenBuffered(name string) (Asset, error) {
	clean := CleanPath(name)
	f, err := s.fsys.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("open asset %q: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat asset %q: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open asset %q: is a directory", name)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read asset %q: %w", name, err)
	}
	return &bufferedAsset{data: data}, nil
}

// List collects every entry of dir. The handle is always released.
func List(s Store, dir string) ([]string, error) {
	d, err := s.OpenDir(dir)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	var names []string
	for {
		name, ok := d.Next()
		if !ok {
			return names, nil
		}
		names = append(names, name)
	}
}

// ReadAll returns a copy of an asset's content.
func ReadAll(s Store, name string) ([]byte, error) {
	a, err := s.OpenBuffered(name)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return append([]byte(nil), a.Buffer()...), nil
}

type dirListing struct {
	mu     sync.Mutex
	names  []string
	pos    int
	closed bool
}

func (d *dirListing) Next() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.pos >= len(d.names) {
		return "", false
	}
	name := d.names[d.pos]
	d.pos++
	return name, true
}

func (d *dirListing) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.closed = true
	d.names = nil
	return nil
}

type bufferedAsset struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

func (a *bufferedAsset) Buffer() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

func (a *bufferedAsset) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.data)
}

func (a *bufferedAsset) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.closed = true
	a.data = nil
	return nil
}
