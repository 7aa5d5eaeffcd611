// Package bundle packages an application's asset directory into its binary.
// The assets are stored as a ZIP archive appended to the executable and
// located through a fixed-size footer at the very end of the file.
package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// MagicMarker identifies bundled binaries
	MagicMarker = "VEGAPACK"
	// FooterSize: 8 bytes offset + 8 bytes size + 8 bytes magic
	FooterSize = 24
)

// ErrNotBundled is returned when a binary carries no asset bundle.
var ErrNotBundled = errors.New("binary is not bundled")

// ignoredFiles matches editor lock and backup files.
var ignoredFiles = regexp.MustCompile(`^(|.*/)((#|\.#)[^/]*|[^/]*~)$`)

// Footer locates the ZIP data inside a bundled binary.
type Footer struct {
	Offset int64
	Size   int64
	Magic  [8]byte
}

func (f Footer) valid() bool {
	return bytes.Equal(f.Magic[:], []byte(MagicMarker))
}

// readFooter reads the trailing footer of r. ok is false when the file is too
// small or the magic marker is absent.
func readFooter(r io.ReaderAt, fileSize int64) (footer Footer, ok bool, err error) {
	if fileSize < FooterSize {
		return footer, false, nil
	}
	buf := make([]byte, FooterSize)
	if _, err := r.ReadAt(buf, fileSize-FooterSize); err != nil {
		return footer, false, fmt.Errorf("failed to read footer: %w", err)
	}
	footer.Offset = int64(binary.LittleEndian.Uint64(buf[0:8]))
	footer.Size = int64(binary.LittleEndian.Uint64(buf[8:16]))
	copy(footer.Magic[:], buf[16:24])
	if !footer.valid() || footer.Offset < 0 || footer.Size < 0 || footer.Offset+footer.Size > fileSize-FooterSize {
		return Footer{}, false, nil
	}
	return footer, true, nil
}

func (f Footer) bytes() []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(f.Offset))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(f.Size))
	copy(buf[16:24], f.Magic[:])
	return buf
}

// BinarySize returns the size of the executable portion of binaryPath.
// For a bundled binary that is the bundle offset, otherwise the file size.
func BinarySize(binaryPath string) (int64, error) {
	file, err := os.Open(binaryPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open binary: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat binary: %w", err)
	}
	footer, ok, err := readFooter(file, info.Size())
	if err != nil {
		return 0, err
	}
	if ok {
		return footer.Offset, nil
	}
	return info.Size(), nil
}

// Create writes outputPath: the executable portion of sourceBinary followed by
// the contents of assetDir as a ZIP and the footer. An existing bundle on
// sourceBinary is replaced, not nested.
func Create(sourceBinary, assetDir, outputPath string) error {
	binarySize, err := BinarySize(sourceBinary)
	if err != nil {
		return fmt.Errorf("failed to get binary size: %w", err)
	}

	var zipBuf bytes.Buffer
	if err := writeZip(&zipBuf, assetDir); err != nil {
		return fmt.Errorf("failed to add files to ZIP: %w", err)
	}

	src, err := os.Open(sourceBinary)
	if err != nil {
		return fmt.Errorf("failed to open source binary: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if _, err := io.CopyN(out, src, binarySize); err != nil {
		return fmt.Errorf("failed to copy binary: %w", err)
	}
	if _, err := out.Write(zipBuf.Bytes()); err != nil {
		return fmt.Errorf("failed to write ZIP data: %w", err)
	}

	footer := Footer{Offset: binarySize, Size: int64(zipBuf.Len())}
	copy(footer.Magic[:], MagicMarker)
	if _, err := out.Write(footer.bytes()); err != nil {
		return fmt.Errorf("failed to write footer: %w", err)
	}
	return out.Close()
}

// writeZip archives every file under root into w.
func writeZip(w io.Writer, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to get absolute path of source: %w", err)
	}
	zw := zip.NewWriter(w)
	p := &packer{zw: zw, root: root, absRoot: absRoot}
	if err := filepath.WalkDir(root, p.visit); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// packer adds files to a ZIP, keeping relative symlinks as symlinks.
type packer struct {
	zw      *zip.Writer
	root    string
	absRoot string
}

func (p *packer) visit(filePath string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	if d.IsDir() || ignoredFiles.MatchString(filepath.ToSlash(filePath)) {
		return nil
	}

	rel, err := filepath.Rel(p.root, filePath)
	if err != nil {
		return err
	}
	zipPath := filepath.ToSlash(rel)

	info, err := os.Lstat(filePath)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return p.addSymlink(filePath, zipPath)
	}
	return p.addFile(filePath, zipPath, info.Mode())
}

func (p *packer) addFile(filePath, zipPath string, mode fs.FileMode) error {
	header := &zip.FileHeader{Name: zipPath, Method: zip.Deflate}
	header.SetMode(mode)
	w, err := p.zw.CreateHeader(header)
	if err != nil {
		return err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// addSymlink stores the link target as the entry content.
func (p *packer) addSymlink(filePath, zipPath string) error {
	target, err := os.Readlink(filePath)
	if err != nil {
		return fmt.Errorf("failed to read symlink %s: %w", filePath, err)
	}
	if filepath.IsAbs(target) {
		return fmt.Errorf("absolute symlink not allowed: %s -> %s", filePath, target)
	}
	resolved, err := filepath.Abs(filepath.Join(filepath.Dir(filePath), target))
	if err != nil {
		return fmt.Errorf("failed to resolve symlink target: %w", err)
	}
	if !isWithinDir(resolved, p.absRoot) {
		return fmt.Errorf("symlink escapes bundle: %s -> %s (resolves to %s)", filePath, target, resolved)
	}

	header := &zip.FileHeader{Name: zipPath, Method: zip.Store}
	header.SetMode(os.ModeSymlink | 0777)
	w, err := p.zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(filepath.ToSlash(target)))
	return err
}

// isWithinDir checks if absPath is absDir or below it.
func isWithinDir(absPath, absDir string) bool {
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Bundle is an opened asset bundle.
type Bundle struct {
	Path   string
	reader *zip.Reader
	fs     *linkFS
}

// FileInfo contains metadata about a bundled file.
type FileInfo struct {
	Name          string      // Path within the bundle
	IsSymlink     bool        // True if this is a symlink
	SymlinkTarget string      // Target path if symlink, empty otherwise
	Mode          fs.FileMode // File mode (permissions)
	Size          uint64      // Uncompressed size
}

// Open reads the bundle appended to the binary at exePath.
// It returns ErrNotBundled if there is none.
func Open(exePath string) (*Bundle, error) {
	file, err := os.Open(exePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open executable: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat executable: %w", err)
	}
	footer, ok, err := readFooter(file, info.Size())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotBundled
	}

	data := make([]byte, footer.Size)
	if _, err := file.ReadAt(data, footer.Offset); err != nil {
		return nil, fmt.Errorf("failed to read ZIP data: %w", err)
	}
	reader, err := zip.NewReader(bytes.NewReader(data), footer.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP reader: %w", err)
	}
	return &Bundle{Path: exePath, reader: reader, fs: newLinkFS(reader)}, nil
}

// OpenSelf opens the bundle of the running executable.
func OpenSelf() (*Bundle, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	return Open(exePath)
}

// FS returns the bundle as a read-only filesystem. Symlink entries are
// followed, so a linked asset reads as its target's content.
func (b *Bundle) FS() fs.FS {
	return b.fs
}

// Files lists every entry in the bundle.
func (b *Bundle) Files() []FileInfo {
	files := make([]FileInfo, 0, len(b.reader.File))
	for _, f := range b.reader.File {
		info := FileInfo{Name: f.Name, Mode: f.Mode(), Size: f.UncompressedSize64}
		if f.Mode()&os.ModeSymlink != 0 {
			info.IsSymlink = true
			if target, err := readEntry(f); err == nil {
				info.SymlinkTarget = string(target)
			}
		}
		files = append(files, info)
	}
	return files
}

// ReadFile reads a file from the bundle, following symlinks.
func (b *Bundle) ReadFile(name string) ([]byte, error) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		name = "."
	}
	content, err := fs.ReadFile(b.fs, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return content, nil
}

// Extract writes the bundle into targetDir, recreating symlinks.
func (b *Bundle) Extract(targetDir string) error {
	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return err
	}
	for _, f := range b.reader.File {
		if err := extractEntry(f, absTarget); err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func extractEntry(f *zip.File, absTarget string) error {
	dest := filepath.Join(absTarget, filepath.FromSlash(f.Name))
	if !isWithinDir(dest, absTarget) {
		return fmt.Errorf("zip entry escapes target directory: %s", f.Name)
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	content, err := readEntry(f)
	if err != nil {
		return err
	}

	if f.Mode()&os.ModeSymlink != 0 {
		link := filepath.FromSlash(string(content))
		if !isWithinDir(filepath.Join(filepath.Dir(dest), link), absTarget) {
			return fmt.Errorf("symlink escapes target directory: %s -> %s", f.Name, link)
		}
		os.Remove(dest)
		return os.Symlink(link, dest)
	}
	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	return os.WriteFile(dest, content, perm)
}
