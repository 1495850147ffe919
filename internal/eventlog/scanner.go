package eventlog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"purchase-anomaly-alerts/internal/network"
)

const maxLineBytes = 1 << 20

// Scanner reads records one line at a time, skipping blank lines.
type Scanner struct {
	sc   *bufio.Scanner
	line int
}

// NewScanner wraps r.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Scanner{sc: sc}
}

// Line is the 1-based number of the last line read.
func (s *Scanner) Line() int { return s.line }

// ReadParams decodes the next line as the parameter line.
func (s *Scanner) ReadParams() (Params, error) {
	raw, err := s.nextLine()
	if err == io.EOF {
		return Params{}, fmt.Errorf("%w: missing parameter line", ErrMalformedRecord)
	}
	if err != nil {
		return Params{}, err
	}
	params, err := ParseParams(raw)
	if err != nil {
		return Params{}, fmt.Errorf("line %d: %w", s.line, err)
	}
	return params, nil
}

// Next decodes the next event. It returns io.EOF when the input is exhausted.
// A decode error leaves the scanner positioned after the bad line.
func (s *Scanner) Next() (network.Event, error) {
	raw, err := s.nextLine()
	if err != nil {
		return nil, err
	}
	ev, err := ParseEvent(raw)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", s.line, err)
	}
	return ev, nil
}

func (s *Scanner) nextLine() ([]byte, error) {
	for s.sc.Scan() {
		s.line++
		raw := bytes.TrimSpace(s.sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		return raw, nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", s.line+1, err)
	}
	return nil, io.EOF
}
