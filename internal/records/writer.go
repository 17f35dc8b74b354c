package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Writer writes a header and then records, either one per line or, at Close,
// as one indented JSON array.
type Writer[T any] struct {
	bw        *bufio.Writer
	closer    io.Closer
	streaming bool
	buffered  []T
	closed    bool
}

// NewWriter records the framing mode in header and writes it to w.
func NewWriter[T any](w io.Writer, header Header, streaming bool) (*Writer[T], error) {
	header.SetStreaming(streaming)
	wr := &Writer[T]{bw: bufio.NewWriter(w), streaming: streaming}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	if err := wr.writeLine(header); err != nil {
		return nil, fmt.Errorf("failed to write record file header: %w", err)
	}
	return wr, nil
}

// CreateFile creates path, including missing parent directories, and writes header to it.
func CreateFile[T any](path string, header Header, streaming bool) (*Writer[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w, err := NewWriter[T](f, header, streaming)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Write adds one record.
func (w *Writer[T]) Write(v T) error {
	if w.closed {
		return fmt.Errorf("write to closed record writer")
	}
	if !w.streaming {
		w.buffered = append(w.buffered, v)
		return nil
	}
	return w.writeLine(v)
}

// Close flushes pending records and closes the underlying file, if any.
func (w *Writer[T]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if !w.streaming {
		items := w.buffered
		if items == nil {
			items = []T{}
		}
		var data []byte
		data, err = marshal(items, "  ")
		if err == nil {
			_, err = w.bw.Write(data)
		}
	}
	if ferr := w.bw.Flush(); err == nil {
		err = ferr
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *Writer[T]) writeLine(v any) error {
	data, err := marshal(v, "")
	if err != nil {
		return err
	}
	_, err = w.bw.Write(data)
	return err
}

// marshal encodes v without HTML escaping, since records carry source code.
// The result ends with a newline.
func marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
