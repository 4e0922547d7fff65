package transfer

import (
	"bytes"
	"io"
	"os"
)

// Source is the random-access reader a send job pulls chunks from.
type Source interface {
	io.ReaderAt
	io.Closer
}

// FileSource describes a file to offer. Open is called when the peer first
// requests the file and again after every interruption.
type FileSource struct {
	Name string
	Size int64
	Open func() (Source, error)
}

// PathSource offers the file at path under the given display name.
func PathSource(path, name string, size int64) FileSource {
	return FileSource{
		Name: name,
		Size: size,
		Open: func() (Source, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, NewFileError("open", path, err)
			}
			return f, nil
		},
	}
}

// BytesSource offers an in-memory payload.
func BytesSource(name string, data []byte) FileSource {
	return FileSource{
		Name: name,
		Size: int64(len(data)),
		Open: func() (Source, error) {
			return nopCloser{bytes.NewReader(data)}, nil
		},
	}
}

type nopCloser struct{ io.ReaderAt }

func (nopCloser) Close() error { return nil }
