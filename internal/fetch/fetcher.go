// Package fetch matches generated codes to the augmenting code sections of
// prepared files. It merge-joins any number of generated code streams, each
// sorted ascending by file id, keeping a single record of lookahead per stream.
package fetch

import (
	"errors"

	"codeaug/internal/records"
	"codeaug/internal/types"
)

type cursor struct {
	src       records.Source[types.SourceFileGeneratedCode]
	current   *types.SourceFileGeneratedCode
	exhausted bool
}

// Fetcher looks up generated codes by file id and augmenting code id.
// PrepareForFile must be called with non-decreasing file ids.
type Fetcher struct {
	cursors []*cursor
}

// New creates a Fetcher over sources. It takes ownership of them.
func New(sources ...records.Source[types.SourceFileGeneratedCode]) *Fetcher {
	f := &Fetcher{}
	for _, src := range sources {
		f.cursors = append(f.cursors, &cursor{src: src})
	}
	return f
}

// OpenFiles opens each generated code file as a source.
func OpenFiles(paths []string) (*Fetcher, error) {
	var sources []records.Source[types.SourceFileGeneratedCode]
	for _, p := range paths {
		src, err := records.OpenFile[types.SourceFileGeneratedCode](p, &types.ResponseHeader{})
		if err != nil {
			for _, s := range sources {
				s.Close()
			}
			return nil, err
		}
		sources = append(sources, src)
	}
	return New(sources...), nil
}

// PrepareForFile advances every stream past records with ids below fileID and
// reports whether any stream is now positioned on fileID.
func (f *Fetcher) PrepareForFile(fileID int) (bool, error) {
	found := false
	for _, c := range f.cursors {
		for !c.exhausted && (c.current == nil || c.current.FileID < fileID) {
			rec, ok, err := c.src.Next()
			if err != nil {
				return false, err
			}
			if !ok {
				c.exhausted = true
				c.current = nil
				break
			}
			c.current = &rec
		}
		if c.current != nil && c.current.FileID == fileID {
			found = true
		}
	}
	return found, nil
}

// GeneratedCode returns the generated code with augCodeID among the streams
// positioned on fileID, or nil.
func (f *Fetcher) GeneratedCode(fileID, augCodeID int) *types.GeneratedCode {
	for _, c := range f.cursors {
		if c.current == nil || c.current.FileID != fileID {
			continue
		}
		if g := c.current.Find(augCodeID); g != nil {
			return g
		}
	}
	return nil
}

// Close closes every stream.
func (f *Fetcher) Close() error {
	var errs []error
	for _, c := range f.cursors {
		if err := c.src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
