// Package clipboard connects room clipboard sync to the system clipboard.
package clipboard

import (
	"errors"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available,
// for example on a headless Linux host without xclip, xsel or wl-clipboard.
var ErrUnsupported = errors.New("system clipboard unavailable")

// System reads and writes the desktop clipboard.
type System struct{}

// New returns the system clipboard, or ErrUnsupported.
func New() (System, error) {
	if clipboard.Unsupported {
		return System{}, ErrUnsupported
	}
	return System{}, nil
}

func (System) Read() (string, error) { return clipboard.ReadAll() }

func (System) Write(content string) error { return clipboard.WriteAll(content) }
