// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/haldane-loop/zipcore/internal/wire"
)

const inputStreamBufferSize = 32 * 1024

// InputStream is a forward-only ZIP reader: GetNextEntry advances past any
// still-open entry's remaining bytes, parses the next local file header,
// and returns an Entry; Read then yields that entry's inflated content
// until it is exhausted. It never seeks, so it can read directly from a
// pipe or network connection as well as a file.
type InputStream struct {
	br      *bufio.Reader
	options Options

	current *Entry
	body    io.Reader
	closer  io.Closer
	crcHash uint32
	read    uint64
	checked bool
}

// NewInputStream returns an InputStream reading from r.
func NewInputStream(r io.Reader, options Options) *InputStream {
	return &InputStream{br: bufio.NewReaderSize(r, inputStreamBufferSize), options: options}
}

// GetNextEntry discards whatever remains of any currently open entry,
// scans forward for the next local file header, and returns the Entry it
// describes. Returns io.EOF once the central directory signature is
// reached.
func (s *InputStream) GetNextEntry() (*Entry, error) {
	if s.current != nil {
		if _, err := io.Copy(io.Discard, s); err != nil && err != io.EOF {
			return nil, err
		}
		s.closeBody()
	}

	for {
		peek, err := s.br.Peek(4)
		if err != nil {
			return nil, err
		}
		switch wire.GetUint32(peek) {
		case wire.LocalFileHeaderSignature:
			if _, err := s.br.Discard(4); err != nil {
				return nil, err
			}
			return s.openEntry()
		case wire.CentralDirectorySignature:
			return nil, io.EOF
		default:
			if _, err := s.br.Discard(1); err != nil {
				return nil, err
			}
		}
	}
}

func (s *InputStream) openEntry() (*Entry, error) {
	e := &Entry{}
	if err := e.ReadLocalHeader(s.br); err != nil {
		return nil, err
	}

	if e.Incomplete() && e.CompressionMethod() == MethodStored {
		return nil, fmt.Errorf("%w: a STORED entry with a trailing data descriptor has no way to signal its own end", ErrUnsupported)
	}

	// flate.NewReader special-cases a source that already implements
	// ReadByte (bufio.Reader does) and reads directly from it instead of
	// wrapping it in another buffered layer, so handing it s.br here never
	// strands bytes belonging to the trailing data descriptor inside a
	// hidden buffer the way a second bufio.Reader would.
	var raw io.Reader = s.br
	if !e.Incomplete() {
		raw = io.LimitReader(s.br, int64(e.compressedSize))
	}

	switch e.CompressionMethod() {
	case MethodStored:
		s.body, s.closer = raw, nil
	case MethodDeflated:
		fr := flate.NewReader(raw)
		s.body, s.closer = fr, fr
	default:
		return nil, fmt.Errorf("%w: compression method %d", ErrUnsupported, e.CompressionMethod())
	}

	s.current = e
	s.crcHash = 0
	s.read = 0
	s.checked = false
	return e, nil
}

// Read decompresses the current entry's content into p. At end of stream it
// validates the accumulated CRC-32 (and, when Options.ValidateEntrySizes is
// set, the byte count) against the entry's declared or data-descriptor
// values, surfacing a mismatch as ErrDecompression.
func (s *InputStream) Read(p []byte) (int, error) {
	if s.body == nil {
		return 0, fmt.Errorf("%w: read with no entry open", ErrIO)
	}

	n, err := s.body.Read(p)
	if n > 0 {
		s.crcHash = crc32.Update(s.crcHash, crc32.IEEETable, p[:n])
		s.read += uint64(n)
	}
	if err == io.EOF {
		if verr := s.finishEntry(); verr != nil {
			return n, verr
		}
	}
	return n, err
}

// finishEntry runs once per entry at end-of-stream: it consumes a trailing
// Data Descriptor for an incomplete entry (recovering its real CRC and
// sizes) and validates the content actually read.
func (s *InputStream) finishEntry() error {
	if s.checked {
		return nil
	}
	s.checked = true

	e := s.current
	if e.Incomplete() {
		dd, err := wire.ReadDataDescriptor(s.br)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}
		e.crc = dd.CRC32
		e.compressedSize = dd.CompressedSize
		e.size = dd.UncompressedSize
	}

	if s.crcHash != e.crc {
		return fmt.Errorf("%w: crc mismatch reading %q", ErrDecompression, e.Name())
	}
	if s.options.ValidateEntrySizes && s.read != e.size {
		return fmt.Errorf("%w: size mismatch reading %q", ErrDecompression, e.Name())
	}
	return nil
}

func (s *InputStream) closeBody() {
	if s.closer != nil {
		s.closer.Close()
	}
	s.current, s.body, s.closer = nil, nil, nil
}

// Close releases any codec resources held by the currently open entry. It
// does not close the underlying reader, which the caller owns.
func (s *InputStream) Close() error {
	s.closeBody()
	return nil
}
