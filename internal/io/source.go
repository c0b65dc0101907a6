package io

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spkg/bom"
)

const readerBufferSize = 1 << 20

// Input is a named byte source that can be opened more than once, so the
// header can be probed before the data pass.
type Input struct {
	// Name is the path or label used in logs and error collections.
	Name string
	// Size is the stored (possibly compressed) size, or UnknownSize.
	Size int64
	open func() (io.ReadCloser, error)
}

// FileInput creates an input for a local file. A failed stat leaves the
// size unknown; opening reports the error.
func FileInput(path string) Input {
	size := int64(UnknownSize)
	if fi, err := os.Stat(path); err == nil {
		size = fi.Size()
	}
	return Input{
		Name: path,
		Size: size,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesInput creates an input over an in-memory buffer.
func BytesInput(name string, data []byte) Input {
	return Input{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Open opens the input for reading.
func (in Input) Open() (*Source, error) {
	if in.open == nil {
		return nil, fmt.Errorf("input %s cannot be opened", in.Name)
	}
	raw, err := in.open()
	if err != nil {
		return nil, err
	}
	return newSource(in.Name, in.Size, raw)
}

// Source is an opened input. Reads return decoded bytes with any leading
// byte order mark removed; BytesRead counts stored bytes so it can be
// compared with Size.
type Source struct {
	name    string
	size    int64
	raw     io.ReadCloser
	counter *countingReader
	decoder io.Closer
	r       *bufio.Reader
}

func newSource(name string, size int64, raw io.ReadCloser) (*Source, error) {
	s := &Source{name: name, size: size, raw: raw, counter: &countingReader{r: raw}}

	var decoded io.Reader = s.counter
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(s.counter)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		s.decoder = zr
		decoded = zr
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(s.counter)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		rc := zr.IOReadCloser()
		s.decoder = rc
		decoded = rc
	}

	s.r = bufio.NewReaderSize(bom.NewReader(decoded), readerBufferSize)
	return s, nil
}

// Name returns the input name.
func (s *Source) Name() string { return s.name }

// Read implements io.Reader.
func (s *Source) Read(p []byte) (int, error) { return s.r.Read(p) }

// Size returns the stored size, or UnknownSize.
func (s *Source) Size() int64 { return s.size }

// BytesRead returns the number of stored bytes consumed so far, or
// UnknownSize when the size is unknown.
func (s *Source) BytesRead() int64 {
	if s.size < 0 {
		return UnknownSize
	}
	return s.counter.n.Load()
}

// Close closes the decoder and the underlying input.
func (s *Source) Close() error {
	if s.decoder != nil {
		if err := s.decoder.Close(); err != nil {
			s.raw.Close()
			return err
		}
	}
	return s.raw.Close()
}

// countingReader may be driven by decoder goroutines.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
