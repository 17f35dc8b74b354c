// Package records reads and writes the record files exchanged between pipeline
// stages. Every file starts with a one-line JSON header. When the header's
// contentStreamingEnabled flag is absent or true, each following line holds one
// JSON record; otherwise the remainder of the file is a single JSON array.
package records

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Header is implemented by pointers to the record file headers in package types.
type Header interface {
	Streaming() bool
	SetStreaming(enabled bool)
}

// Source yields records in file order. Next returns false once the records are exhausted.
type Source[T any] interface {
	Next() (T, bool, error)
	Close() error
}

// Open reads the header line of r into header and returns a source over the
// records that follow, selected by the header's framing flag.
func Open[T any](r io.Reader, header Header) (Source[T], error) {
	br := bufio.NewReader(r)
	line, err := readLine(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing record file header")
		}
		return nil, fmt.Errorf("failed to read record file header: %w", err)
	}
	if err := json.Unmarshal([]byte(line), header); err != nil {
		return nil, fmt.Errorf("failed to parse record file header: %w", err)
	}

	closer, _ := r.(io.Closer)
	if header.Streaming() {
		return &StreamedSource[T]{br: br, closer: closer, lineNo: 1}, nil
	}

	rest, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	var items []T
	if strings.TrimSpace(string(rest)) != "" {
		if err := json.Unmarshal(rest, &items); err != nil {
			return nil, fmt.Errorf("failed to parse buffered records: %w", err)
		}
	}
	return &BufferedSource[T]{items: items, closer: closer}, nil
}

// OpenFile opens path and reads its header into header.
func OpenFile[T any](path string, header Header) (Source[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	src, err := Open[T](f, header)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// ReadAll drains src.
func ReadAll[T any](src Source[T]) ([]T, error) {
	var out []T
	for {
		v, ok, err := src.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// StreamedSource decodes one record per line, skipping blank lines.
type StreamedSource[T any] struct {
	br     *bufio.Reader
	closer io.Closer
	lineNo int
}

func (s *StreamedSource[T]) Next() (T, bool, error) {
	var zero T
	for {
		line, err := readLine(s.br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return zero, false, nil
			}
			return zero, false, err
		}
		s.lineNo++
		if strings.TrimSpace(line) == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return zero, false, fmt.Errorf("invalid record at line %d: %w", s.lineNo, err)
		}
		return v, true, nil
	}
}

func (s *StreamedSource[T]) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// BufferedSource iterates over records decoded up front from a JSON array.
type BufferedSource[T any] struct {
	items  []T
	pos    int
	closer io.Closer
}

func (s *BufferedSource[T]) Next() (T, bool, error) {
	var zero T
	if s.pos >= len(s.items) {
		return zero, false, nil
	}
	v := s.items[s.pos]
	s.pos++
	return v, true, nil
}

func (s *BufferedSource[T]) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// readLine returns the next line without its terminator, of any length.
func readLine(br *bufio.Reader) (string, error) {
	var b []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		b = append(b, chunk...)
		if !isPrefix {
			break
		}
	}
	return string(b), nil
}
