package transfer

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BioHazard786/Roomdrop/internal/utils"
)

// Destination receives the bytes of one incoming file. Writes are
// positioned so a resumed transfer lands at its cursor.
type Destination interface {
	WriteAt(p []byte, off int64) (int, error)
	// Close commits the output.
	Close() error
	// Abort discards partial output.
	Abort() error
}

// Chooser hands out streaming destinations. It returns
// ErrStreamingUnsupported to request the in-memory fallback; any other
// error means the user declined and no request is sent.
type Chooser interface {
	Choose(ctx context.Context, name string, size int64) (Destination, error)
}

// Saver materializes a fully buffered file.
type Saver interface {
	Save(name string, data []byte) error
}

// DirectoryChooser streams incoming files into Dir, never overwriting an
// existing file.
type DirectoryChooser struct {
	Dir string
}

func (c DirectoryChooser) Choose(_ context.Context, name string, _ int64) (Destination, error) {
	dir := c.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewFileError("create directory", dir, err)
	}

	path := utils.GetUniqueFilename(filepath.Join(dir, SafeName(name)))
	file, err := os.Create(path)
	if err != nil {
		return nil, NewFileError("create file", path, err)
	}
	return &FileDestination{file: file, path: path}, nil
}

// FileDestination writes an incoming file to disk.
type FileDestination struct {
	file   *os.File
	path   string
	closed bool
}

func (d *FileDestination) Path() string { return d.path }

func (d *FileDestination) WriteAt(p []byte, off int64) (int, error) {
	n, err := d.file.WriteAt(p, off)
	if err != nil {
		return n, NewFileError("write", d.path, err)
	}
	return n, nil
}

func (d *FileDestination) Close() error {
	if d.closed {
		return nil
	}
	if err := d.file.Close(); err != nil {
		return NewFileError("close", d.path, err)
	}
	d.closed = true
	return nil
}

func (d *FileDestination) Abort() error {
	if !d.closed {
		d.closed = true
		_ = d.file.Close()
	}
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return NewFileError("remove", d.path, err)
	}
	return nil
}

// DirectorySaver writes buffered files into Dir.
type DirectorySaver struct {
	Dir string
}

func (s DirectorySaver) Save(name string, data []byte) error {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewFileError("create directory", dir, err)
	}
	path := utils.GetUniqueFilename(filepath.Join(dir, SafeName(name)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewFileError("save", path, err)
	}
	return nil
}

const maxPrealloc = 64 << 20

// memoryBuffer is the fallback destination used when no streaming sink is
// available. The whole file is handed to a Saver on Close.
type memoryBuffer struct {
	name  string
	data  []byte
	saver Saver
}

func newMemoryBuffer(name string, size int64, saver Saver) *memoryBuffer {
	return &memoryBuffer{name: name, data: make([]byte, 0, min(size, maxPrealloc)), saver: saver}
}

func (b *memoryBuffer) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(b.data) {
		b.data = slices.Grow(b.data, end-len(b.data))[:end]
	}
	copy(b.data[off:], p)
	return len(p), nil
}

func (b *memoryBuffer) Close() error {
	return b.saver.Save(b.name, b.data)
}

func (b *memoryBuffer) Abort() error {
	b.data = nil
	return nil
}

// SafeName strips any directory components a peer put in a file name.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "download"
	}
	return name
}
