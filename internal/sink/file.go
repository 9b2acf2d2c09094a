package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// maxLineSize bounds a single record line when reading a file back.
const maxLineSize = 64 << 20

// pathLocks serializes appends to the same file within this process, so a
// line larger than one write(2) can never interleave with another.
var pathLocks sync.Map // absolute path -> *sync.Mutex

// File appends records as JSON lines to a file.
// The file is created with mode 0644 on first append and never truncated.
type File struct {
	path string
	mu   *sync.Mutex
}

// NewFile returns a file sink for path. The file is not touched until the
// first append.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file sink: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("file sink %s: %w", path, err)
	}
	mu, _ := pathLocks.LoadOrStore(abs, &sync.Mutex{})
	return &File{path: path, mu: mu.(*sync.Mutex)}, nil
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Location implements Sink.
func (f *File) Location() string {
	return f.path
}

// Append opens the file, writes the line with a single Write call and
// closes it again. A short write is reported as io.ErrShortWrite.
func (f *File) Append(ctx context.Context, entry Entry) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkLine(entry.Line); err != nil {
		return fmt.Errorf("append %s: %w", f.path, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("append %s: %w", f.path, err)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("append %s: close: %w", f.path, cerr)
		}
	}()

	n, err := fh.Write(entry.Line)
	if err == nil && n < len(entry.Line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("append %s: %w", f.path, err)
	}
	return nil
}

// ReadLines returns every line of the file. A missing file reads as empty.
func (f *File) ReadLines(ctx context.Context) ([][]byte, error) {
	fh, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return [][]byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	defer fh.Close()

	lines := [][]byte{}
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := append([]byte(nil), scanner.Bytes()...)
		lines = append(lines, append(line, '\n'))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return lines, nil
}

// Close implements Sink. The file sink holds no handle between appends.
func (f *File) Close() error {
	return nil
}
