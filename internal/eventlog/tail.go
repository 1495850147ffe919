package eventlog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Tailer returns complete lines appended to a file since the previous call.
// A trailing line without a newline is held back until it is completed.
type Tailer struct {
	path    string
	offset  int64
	partial []byte
	resets  int
}

// NewTailer starts reading path at offset.
func NewTailer(path string, offset int64) *Tailer {
	return &Tailer{path: path, offset: offset}
}

// Offset is the position up to which the file has been consumed.
func (t *Tailer) Offset() int64 { return t.offset }

// Resets counts how often the file shrank and reading restarted at zero.
func (t *Tailer) Resets() int { return t.resets }

// ReadLines returns the new complete, non-blank lines. A missing file yields
// no lines.
func (t *Tailer) ReadLines() ([][]byte, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", t.path, err)
	}
	if info.Size() < t.offset {
		t.offset = 0
		t.partial = nil
		t.resets++
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", t.path, err)
	}
	chunk, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.path, err)
	}
	t.offset += int64(len(chunk))

	data := append(t.partial, chunk...)
	cut := bytes.LastIndexByte(data, '\n')
	if cut < 0 {
		t.partial = data
		return nil, nil
	}
	t.partial = append([]byte(nil), data[cut+1:]...)

	var lines [][]byte
	for _, line := range bytes.Split(data[:cut], []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}
