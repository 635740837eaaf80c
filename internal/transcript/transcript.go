// Package transcript duplicates loop output into an append-only log file,
// so an interactive run leaves a reviewable record behind.
package transcript

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Writer tees everything written to it into the transcript file and the
// wrapped destination.
type Writer struct {
	dst  io.Writer
	file *os.File
	tee  io.Writer
}

// New opens (or creates) the transcript file at path and returns a writer
// that mirrors output into it. The file is opened in append mode; successive
// runs accumulate.
func New(dst io.Writer, path string) (*Writer, error) {
	if dst == nil {
		return nil, errors.New("transcript: nil destination")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("transcript: empty path")
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("transcript: create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("transcript: open file: %w", err)
	}

	w := &Writer{
		dst:  dst,
		file: file,
		tee:  io.MultiWriter(dst, file),
	}
	fmt.Fprintf(file, "--- session %s ---\n", time.Now().UTC().Format(time.RFC3339))
	return w, nil
}

// Write sends p to both the destination and the transcript file.
func (w *Writer) Write(p []byte) (int, error) {
	if w == nil || w.tee == nil {
		return 0, errors.New("transcript: nil writer")
	}
	return w.tee.Write(p)
}

// Close flushes and closes the transcript file. The wrapped destination is
// left open.
func (w *Writer) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("transcript: close file: %w", err)
	}
	w.file = nil
	return nil
}
