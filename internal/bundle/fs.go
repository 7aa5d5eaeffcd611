package bundle

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// maxLinkHops bounds symlink resolution so link cycles fail instead of spinning.
const maxLinkHops = 40

// linkFS is a read-only view of the bundle that follows the symlink entries
// stored by Create, the way os.DirFS follows them on the source tree. Links
// must stay inside the bundle root.
type linkFS struct {
	reader *zip.Reader
	links  map[string]string // entry name -> link target, slash separated
}

var _ fs.FS = (*linkFS)(nil)

func newLinkFS(reader *zip.Reader) *linkFS {
	l := &linkFS{reader: reader, links: map[string]string{}}
	for _, f := range reader.File {
		if f.Mode()&os.ModeSymlink == 0 {
			continue
		}
		target, err := readEntry(f)
		if err != nil {
			continue
		}
		l.links[strings.TrimSuffix(f.Name, "/")] = string(target)
	}
	return l
}

// Open opens name after resolving every symlink along its path.
func (l *linkFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	resolved, err := l.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return l.reader.Open(resolved)
}

// resolve rewrites name until no element of it is a symlink entry.
func (l *linkFS) resolve(name string) (string, error) {
	for hops := 0; ; hops++ {
		next, ok, err := l.resolveFirst(name)
		if err != nil {
			return "", err
		}
		if !ok {
			return name, nil
		}
		if hops >= maxLinkHops {
			return "", fmt.Errorf("too many levels of symbolic links")
		}
		name = next
	}
}

// resolveFirst replaces the first symlink element of name by its target.
func (l *linkFS) resolveFirst(name string) (string, bool, error) {
	if name == "." || len(l.links) == 0 {
		return name, false, nil
	}
	parts := strings.Split(name, "/")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		target, ok := l.links[prefix]
		if !ok {
			continue
		}
		if path.IsAbs(target) {
			return "", false, fmt.Errorf("absolute symlink in bundle: %s -> %s", prefix, target)
		}
		next := path.Join(path.Dir(prefix), target, strings.Join(parts[i+1:], "/"))
		if next == ".." || strings.HasPrefix(next, "../") {
			return "", false, fmt.Errorf("symlink escapes bundle: %s -> %s", prefix, target)
		}
		return next, true, nil
	}
	return name, false, nil
}
