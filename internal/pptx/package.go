package pptx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gnemet/DeckForge/internal/deckerr"
)

// maxPartSize is the largest single part accepted from a package.
const maxPartSize = 50 << 20 // 50 MB

// maxPackageSize is the cumulative limit for all parts of one package.
const maxPackageSize = 200 << 20 // 200 MB

// maxParts is the maximum number of zip entries in a package.
const maxParts = 10000

const contentTypesPart = "[Content_Types].xml"

// Part is one file inside the package.
type Part struct {
	Name     string
	Data     []byte
	Method   uint16
	Modified time.Time
}

// Package is an OPC container held entirely in memory. Part order is kept so
// a saved package lists its entries the way the source did.
type Package struct {
	parts map[string]*Part
	order []string
}

// NewPackage returns an empty package.
func NewPackage() *Package {
	return &Package{parts: make(map[string]*Part)}
}

// OpenPackage reads the package at path.
func OpenPackage(path string) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, deckerr.NotFound(path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, deckerr.Format(path, "is a directory", nil)
	}

	pkg, err := ReadPackage(f, info.Size())
	if err != nil {
		return nil, deckerr.Format(path, "cannot read package", err)
	}
	return pkg, nil
}

// ReadPackage reads a package from r.
func ReadPackage(r io.ReaderAt, size int64) (*Package, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid package size: %d", size)
	}
	if size > maxPackageSize {
		return nil, fmt.Errorf("package size %d exceeds maximum allowed (%d bytes)", size, maxPackageSize)
	}

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	if len(zr.File) > maxParts {
		return nil, fmt.Errorf("package contains too many entries (%d > %d)", len(zr.File), maxParts)
	}

	pkg := NewPackage()
	var total int64
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if f.UncompressedSize64 > maxPartSize {
			return nil, fmt.Errorf("part %s exceeds maximum allowed size (%d bytes)", f.Name, maxPartSize)
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		total += int64(len(data))
		if total > maxPackageSize {
			return nil, fmt.Errorf("package content exceeds maximum allowed size (%d bytes)", maxPackageSize)
		}
		pkg.put(&Part{
			Name:     strings.TrimPrefix(f.Name, "/"),
			Data:     data,
			Method:   f.Method,
			Modified: f.Modified,
		})
	}

	if !pkg.Has(contentTypesPart) {
		return nil, fmt.Errorf("missing %s", contentTypesPart)
	}
	if !pkg.Has(rootRelsPart) {
		return nil, fmt.Errorf("missing %s", rootRelsPart)
	}
	return pkg, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s in zip: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, int64(maxPartSize)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from zip: %w", f.Name, err)
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("part %s actual size exceeds maximum allowed size", f.Name)
	}
	return data, nil
}

func (p *Package) put(part *Part) {
	if _, ok := p.parts[part.Name]; !ok {
		p.order = append(p.order, part.Name)
	}
	p.parts[part.Name] = part
}

// Has reports whether the package contains the named part.
func (p *Package) Has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// Part returns the bytes of the named part. The slice must not be modified.
func (p *Package) Part(name string) ([]byte, bool) {
	part, ok := p.parts[name]
	if !ok {
		return nil, false
	}
	return part.Data, true
}

// SetPart adds or replaces a part. New parts are appended to the end of the
// package order; replaced parts keep their position and zip settings.
func (p *Package) SetPart(name string, data []byte) {
	if part, ok := p.parts[name]; ok {
		part.Data = data
		return
	}
	p.put(&Part{Name: name, Data: data, Method: zip.Deflate})
}

// copyPartFrom copies a part, bytes and zip settings, from src under a new name.
func (p *Package) copyPartFrom(src *Package, srcName, dstName string) bool {
	part, ok := src.parts[srcName]
	if !ok {
		return false
	}
	data := make([]byte, len(part.Data))
	copy(data, part.Data)
	p.put(&Part{Name: dstName, Data: data, Method: part.Method, Modified: part.Modified})
	return true
}

// DeletePart removes a part. Missing parts are ignored.
func (p *Package) DeletePart(name string) {
	if _, ok := p.parts[name]; !ok {
		return
	}
	delete(p.parts, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// PartNames returns the part names in package order.
func (p *Package) PartNames() []string {
	names := make([]string, len(p.order))
	copy(names, p.order)
	return names
}

// Clone returns a deep copy sharing no bytes with p.
func (p *Package) Clone() *Package {
	c := NewPackage()
	for _, name := range p.order {
		c.copyPartFrom(p, name, name)
	}
	return c
}

// nextPartName returns the first free name of the form prefix<N>ext, N >= 1.
func (p *Package) nextPartName(prefix, ext string) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s%d%s", prefix, n, ext)
		if !p.Has(name) {
			return name
		}
	}
}

// WriteTo writes the package as a zip archive. [Content_Types].xml is always
// the first entry.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	names := p.PartNames()
	sort.SliceStable(names, func(i, j int) bool {
		return names[i] == contentTypesPart && names[j] != contentTypesPart
	})

	for _, name := range names {
		part := p.parts[name]
		hdr := &zip.FileHeader{
			Name:     part.Name,
			Method:   part.Method,
			Modified: part.Modified,
		}
		if hdr.Method != zip.Store {
			hdr.Method = zip.Deflate
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return cw.n, fmt.Errorf("failed to create %s: %w", name, err)
		}
		if _, err := fw.Write(part.Data); err != nil {
			return cw.n, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Bytes returns the serialized package.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the package to path in one step. The archive is fully built in
// memory, written to a temporary file next to path and renamed into place, so
// path either holds the complete package or is left untouched.
func (p *Package) Save(path string) error {
	data, err := p.Bytes()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".deckforge-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("failed to write %s: %w", path, writeErr)
		}
		return fmt.Errorf("failed to write %s: %w", path, closeErr)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}
