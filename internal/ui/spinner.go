package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// LineSpinner animates a single status line until stopped. It is used for
// the short blocking steps before the dashboard takes over the terminal.
type LineSpinner struct {
	spinner spinner.Spinner

	mu      sync.Mutex
	message string

	done chan struct{}
	exit chan struct{}
	once sync.Once
}

func newLineSpinner(message string, s spinner.Spinner) *LineSpinner {
	return &LineSpinner{
		spinner: s,
		message: message,
		done:    make(chan struct{}),
		exit:    make(chan struct{}),
	}
}

// NewWorkSpinner is for local work such as validating or archiving files.
func NewWorkSpinner(message string) *LineSpinner {
	return newLineSpinner(message, spinner.Dot)
}

// NewConnectionSpinner is for waiting on the relay.
func NewConnectionSpinner(message string) *LineSpinner {
	return newLineSpinner(message, spinner.Globe)
}

func (s *LineSpinner) Start() *LineSpinner {
	go func() {
		defer close(s.exit)
		ticker := time.NewTicker(s.spinner.FPS)
		defer ticker.Stop()
		frames := s.spinner.Frames
		for i := 0; ; i++ {
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			fmt.Printf("\r\033[K%s %s", SpinnerStyle.Render(frames[i%len(frames)]), msg)

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

// Stop clears the line. It is safe to call more than once.
func (s *LineSpinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		<-s.exit
		fmt.Print("\r\033[K")
	})
}

func (s *LineSpinner) Success(message string) {
	s.Stop()
	PrintSuccess(message)
}

func (s *LineSpinner) Error(message string) {
	s.Stop()
	PrintError(message)
}

func (s *LineSpinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
