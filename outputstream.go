// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import (
	"fmt"
	"io"
	"math"

	"github.com/haldane-loop/zipcore/internal/wire"
)

type outputState int

const (
	outputFresh outputState = iota
	outputEntryOpen
	outputBetween
	outputClosed
)

// OutputStream is an append-only ZIP writer state machine: Fresh ->
// EntryOpen(e) via PutNextEntry, EntryOpen(e) -> Between via
// FinalizeCurrentEntry, either -> Closed via Close. It streams each
// entry's content through the chosen codec without buffering the whole
// archive, back-patching the local header in place when its sink is
// seekable and falling back to a trailing Data Descriptor when it is not.
type OutputStream struct {
	dest    io.Writer
	out     *countingWriter
	seeker  io.WriteSeeker
	options Options
	comment string

	state outputState

	current          *Entry
	deflater         *Deflater
	localHeaderStart uint64
	reservedZip64    bool

	entries *EntrySet
}

// NewOutputStream returns an OutputStream appending to dest. When dest also
// implements io.WriteSeeker, local headers are back-patched in place once
// an entry's size is known; otherwise every entry is written with its
// incomplete bit set and trails a Data Descriptor.
func NewOutputStream(dest io.Writer, options Options) *OutputStream {
	seeker, _ := dest.(io.WriteSeeker)
	return &OutputStream{
		dest:    dest,
		out:     &countingWriter{dest: dest},
		seeker:  seeker,
		options: options,
		entries: NewEntrySet(),
	}
}

// SetComment sets the archive-level comment emitted with the End Of
// Central Directory record on Close.
func (s *OutputStream) SetComment(c string) { s.comment = c }

// PutNextEntry begins writing e: finalizing any entry still open, then
// emitting e's local file header. Directory entries have no body and
// transition straight through to Between.
func (s *OutputStream) PutNextEntry(e *Entry) error {
	if s.state == outputClosed {
		return fmt.Errorf("%w: put_next_entry on closed output stream", ErrIO)
	}
	if s.state == outputEntryOpen {
		if err := s.FinalizeCurrentEntry(); err != nil {
			return err
		}
	}

	e.localHeaderOffset = s.out.n
	s.localHeaderStart = s.out.n

	if e.Directory() {
		e.crc, e.size, e.compressedSize = 0, 0, 0
		e.dirty = false
		if err := e.WriteLocalHeader(s.out); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		if err := s.entries.Insert(e); err != nil {
			return err
		}
		s.state = outputBetween
		return nil
	}

	incomplete := s.seeker == nil
	if incomplete {
		e.gpFlags |= wire.FlagDataDescriptor
	} else {
		e.gpFlags &^= wire.FlagDataDescriptor
	}

	level := e.CompressionLevel()
	if level == -1 {
		level = s.options.CompressionLevel
	}
	e.SetCompressionLevel(level)

	s.reservedZip64 = s.options.WriteZip64Support || e.localHeaderOffset > math.MaxUint32 || e.RequiresZip64()
	if err := e.writeLocalHeader(s.out, s.reservedZip64); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	deflater, err := NewDeflater(e.wireCompressionMethod(), s.out, level)
	if err != nil {
		return err
	}
	s.deflater = deflater
	s.current = e
	s.state = outputEntryOpen
	return nil
}

// Write streams p through the current entry's codec. Valid only while an
// entry is open.
func (s *OutputStream) Write(p []byte) (int, error) {
	if s.state != outputEntryOpen {
		return 0, fmt.Errorf("%w: write with no entry open", ErrIO)
	}
	return s.deflater.Write(p)
}

// FinalizeCurrentEntry finishes the codec for the open entry, records its
// final CRC/sizes, and either back-patches its local header or emits a
// trailing Data Descriptor. A no-op when no entry is open; fails with
// ErrIO once the stream is closed.
func (s *OutputStream) FinalizeCurrentEntry() error {
	if s.state == outputClosed {
		return fmt.Errorf("%w: finalize_current_entry on closed output stream", ErrIO)
	}
	if s.state != outputEntryOpen {
		return nil
	}

	e := s.current
	crc, uncompressedSize, compressedSize, err := s.deflater.Finish()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	e.crc, e.size, e.compressedSize = crc, uncompressedSize, compressedSize
	e.dirty = false

	if e.Incomplete() {
		dd := wire.DataDescriptor{
			CRC32:            crc,
			CompressedSize:   compressedSize,
			UncompressedSize: uncompressedSize,
			Zip64:            e.RequiresZip64(),
		}
		if _, err := s.out.Write(dd.Encode()); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	} else {
		if e.RequiresZip64() && !s.reservedZip64 {
			return fmt.Errorf("%w: entry %q grew past 4GiB after its header was already written; enable WriteZip64Support to avoid this", ErrIO, e.Name())
		}
		resumeAt := int64(s.out.n)
		if _, err := s.seeker.Seek(int64(s.localHeaderStart), io.SeekStart); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		if err := e.writeLocalHeader(s.seeker, s.reservedZip64); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		if _, err := s.seeker.Seek(resumeAt, io.SeekStart); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	if err := s.entries.Insert(e); err != nil {
		return err
	}
	s.current = nil
	s.deflater = nil
	s.state = outputBetween
	return nil
}

// CopyRawEntry splices e's already-compressed bytes directly from its
// RawContentSource, preserving its CRC, sizes, and compression method
// without decompressing or recompressing. Used on commit for entries whose
// content hasn't changed since the archive was loaded.
func (s *OutputStream) CopyRawEntry(e *Entry) error {
	if s.state == outputClosed {
		return fmt.Errorf("%w: copy_raw_entry on closed output stream", ErrIO)
	}
	if s.state == outputEntryOpen {
		if err := s.FinalizeCurrentEntry(); err != nil {
			return err
		}
	}

	raw, ok := e.Source().(RawContentSource)
	if !ok {
		return fmt.Errorf("%w: entry %q has no raw content source to copy", ErrArgument, e.Name())
	}
	src, err := raw.OpenRaw()
	if err != nil {
		return err
	}
	defer src.Close()

	e.localHeaderOffset = s.out.n
	if err := e.WriteLocalHeader(s.out); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := io.Copy(s.out, src); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if e.Incomplete() {
		dd := wire.DataDescriptor{
			CRC32:            e.crc,
			CompressedSize:   e.compressedSize,
			UncompressedSize: e.size,
			Zip64:            e.RequiresZip64(),
		}
		if _, err := s.out.Write(dd.Encode()); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	if err := s.entries.Insert(e); err != nil {
		return err
	}
	s.state = outputBetween
	return nil
}

// Close finalizes any open entry, writes the central directory and End Of
// Central Directory records, and transitions to Closed. Close is
// idempotent.
func (s *OutputStream) Close() error {
	if s.state == outputClosed {
		return nil
	}
	if s.state == outputEntryOpen {
		if err := s.FinalizeCurrentEntry(); err != nil {
			return err
		}
	}

	cdirStart := s.out.n
	if err := WriteCentralDirectory(s.out, s.entries, cdirStart, s.comment, s.options.WriteZip64Support); err != nil {
		return err
	}
	s.state = outputClosed
	return nil
}

// memoryBuffer is a minimal io.WriteSeeker over a growable byte slice,
// letting OutputStream back-patch local headers when building an archive
// entirely in memory, as WriteBuffer does.
type memoryBuffer struct {
	data []byte
	pos  int
}

func (m *memoryBuffer) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.data) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memoryBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(m.pos) + offset
	case io.SeekEnd:
		newPos = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf("%w: invalid seek whence", ErrArgument)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("%w: negative seek position", ErrArgument)
	}
	m.pos = int(newPos)
	return newPos, nil
}

// WriteBuffer runs fn against a fresh OutputStream wrapping an in-memory,
// seekable buffer, closes the stream once fn returns (even if fn errored),
// and returns the buffer's final bytes.
func WriteBuffer(options Options, fn func(*OutputStream) error) ([]byte, error) {
	mb := &memoryBuffer{}
	stream := NewOutputStream(mb, options)

	err := fn(stream)
	if closeErr := stream.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return mb.data, nil
}
