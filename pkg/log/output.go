package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to stderr, guarded by a mutex since
// multiple goroutines may log concurrently.
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleOutput returns an Output that writes to stderr.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{w: os.Stderr} }

func (c *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.w
	if w == nil {
		w = os.Stderr
	}
	_, err := w.Write(formatted)
	return err
}

func (c *ConsoleOutput) Close() error { return nil }

// WriterOutput writes formatted entries to an arbitrary io.Writer, useful in
// tests that want to capture log output.
type WriterOutput struct {
	mu sync.Mutex
	W  io.Writer
}

func (w *WriterOutput) Write(_ *Entry, formatted []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.W.Write(formatted)
	return err
}

func (w *WriterOutput) Close() error { return nil }
