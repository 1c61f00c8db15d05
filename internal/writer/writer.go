// Package writer implements the data-writer factory: writers registered per
// (data type, file extension) and helpers that save data through them.
//
// A missing writer is always an error (DataWriterError), never a silent no-op.
package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Data types understood by the default writers.
const (
	TypeImage = "image"
	TypeValue = "value"
)

// ErrFileExists is returned when the target exists and overwriting is off.
var ErrFileExists = errors.New("output file already exists")

// Overwrite controls whether an existing file may be replaced.
type Overwrite bool

const (
	NoOverwrite    Overwrite = false
	AllowOverwrite Overwrite = true
)

// Writer encodes one data type to one or more file extensions.
type Writer interface {
	DataType() string
	Extensions() []string
	Write(w io.Writer, data any) error
}

// DataWriterError reports that no writer matches a data type and extension.
type DataWriterError struct {
	Path      string
	Extension string
	DataType  string
}

func (e *DataWriterError) Error() string {
	return fmt.Sprintf("could not find a writer for %s of the specified extension %q (data type %s)", e.Path, e.Extension, e.DataType)
}

// IsDataWriterError reports whether err is or wraps a DataWriterError.
func IsDataWriterError(err error) bool {
	var dwe *DataWriterError
	return errors.As(err, &dwe)
}

type key struct {
	dataType string
	ext      string
}

// Factory holds registered writers.
type Factory struct {
	mu      sync.RWMutex
	writers map[key]Writer
}

func NewFactory() *Factory {
	return &Factory{writers: make(map[key]Writer)}
}

// NewDefaultFactory returns a factory with the built-in image and value
// writers registered.
func NewDefaultFactory() *Factory {
	f := NewFactory()
	f.Register(PNGWriter{})
	f.Register(ValueJSONWriter{})
	return f
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Register adds w for each of its extensions, replacing earlier writers
// for the same pair.
func (f *Factory) Register(w Writer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ext := range w.Extensions() {
		f.writers[key{w.DataType(), normalizeExt(ext)}] = w
	}
}

// WriterFor returns the writer for the pair, if any.
func (f *Factory) WriterFor(dataType, ext string) (Writer, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	w, ok := f.writers[key{dataType, normalizeExt(ext)}]
	return w, ok
}

// Extensions lists the extensions registered for a data type, sorted.
func (f *Factory) Extensions(dataType string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []string
	for k := range f.writers {
		if k.dataType == dataType {
			out = append(out, k.ext)
		}
	}
	slices.Sort(out)
	return out
}

// SaveData writes data to path with the writer for (dataType, ext). An
// empty ext is taken from the path.
func SaveData(f *Factory, data any, dataType, path, ext string, overwrite Overwrite) error {
	if ext == "" {
		ext = filepath.Ext(path)
	}
	w, ok := f.WriterFor(dataType, ext)
	if !ok {
		return &DataWriterError{Path: path, Extension: normalizeExt(ext), DataType: dataType}
	}
	return WriteFile(w, data, path, overwrite)
}

// SaveDataAs tries extensions in order and writes dir/name.ext with the first
// one that has a writer. It returns the written path, or a DataWriterError
// when no extension has one.
func SaveDataAs(f *Factory, data any, dataType, dir, name string, exts []string, overwrite Overwrite) (string, error) {
	for _, ext := range exts {
		w, ok := f.WriterFor(dataType, ext)
		if !ok {
			continue
		}
		file := filepath.Join(dir, name+"."+normalizeExt(ext))
		if err := WriteFile(w, data, file, overwrite); err != nil {
			return "", err
		}
		return file, nil
	}
	return "", &DataWriterError{
		Path:      filepath.Join(dir, name),
		Extension: strings.Join(exts, "|"),
		DataType:  dataType,
	}
}

// WriteFile encodes data with w into path.
func WriteFile(w Writer, data any, path string, overwrite Overwrite) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if overwrite == NoOverwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrFileExists)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := w.Write(file, data); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
