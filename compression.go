// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import (
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// Compression levels for DEFLATE, matching the general-purpose bit flag
// hints APPNOTE defines for method 8.
const (
	DeflateNormal    = 6
	DeflateMaximum   = 9
	DeflateFast      = 2
	DeflateSuperFast = 1
)

// Wire-level method tags. zipcore ships codecs for exactly these two;
// any other value read from an archive is rejected with ErrUnsupported.
const (
	MethodStored   uint16 = 0
	MethodDeflated uint16 = 8
)

// deflateWriterPool recycles *flate.Writer values per compression level; a
// writer's internal tables are expensive enough to allocate that reuse
// across entries matters for archives with many small files.
var deflateWriterPool sync.Map // map[int]*sync.Pool

func poolForLevel(level int) *sync.Pool {
	if p, ok := deflateWriterPool.Load(level); ok {
		return p.(*sync.Pool)
	}
	p := &sync.Pool{
		New: func() interface{} {
			w, _ := flate.NewWriter(io.Discard, level)
			return w
		},
	}
	actual, _ := deflateWriterPool.LoadOrStore(level, p)
	return actual.(*sync.Pool)
}

// countingWriter counts bytes written to an underlying writer.
type countingWriter struct {
	dest io.Writer
	n    uint64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.dest.Write(p)
	w.n += uint64(n)
	return n, err
}

// Deflater streams an entry's uncompressed bytes through a compression
// method while tapping a running CRC-32 and byte count, both of which the
// central directory needs regardless of method. Unlike the teacher's
// one-shot Compress(src, dest), Deflater is written to incrementally as an
// entry is produced from an OutputStream, since zipcore's write path
// never requires an entry to be buffered whole before it is known how big
// it is.
type Deflater struct {
	method           uint16
	level            int
	pool             *sync.Pool
	flateWriter      *flate.Writer
	crc              uint32
	uncompressedSize uint64
	out              *countingWriter
	closed           bool
}

// NewDeflater returns a Deflater for the given method (MethodStored or
// MethodDeflated) writing compressed bytes to dest. level is only
// consulted for MethodDeflated.
func NewDeflater(method uint16, dest io.Writer, level int) (*Deflater, error) {
	switch method {
	case MethodStored, MethodDeflated:
	default:
		return nil, fmt.Errorf("%w: compression method %d", ErrUnsupported, method)
	}

	d := &Deflater{method: method, level: level, out: &countingWriter{dest: dest}}
	if method == MethodDeflated {
		d.pool = poolForLevel(level)
		fw := d.pool.Get().(*flate.Writer)
		fw.Reset(d.out)
		d.flateWriter = fw
	}
	return d, nil
}

// Write compresses p (or copies it verbatim for MethodStored) and folds it
// into the running checksum and uncompressed byte count.
func (d *Deflater) Write(p []byte) (int, error) {
	if d.closed {
		return 0, fmt.Errorf("%w: write to closed deflater", ErrIO)
	}
	d.crc = crc32.Update(d.crc, crc32.IEEETable, p)
	d.uncompressedSize += uint64(len(p))

	if d.method == MethodStored {
		return d.out.Write(p)
	}
	return d.flateWriter.Write(p)
}

// Finish flushes any buffered compressed data, releases the pooled flate
// writer, and reports the entry's final CRC-32, uncompressed size, and
// compressed size. Finish is idempotent.
func (d *Deflater) Finish() (crc uint32, uncompressedSize, compressedSize uint64, err error) {
	if d.closed {
		return d.crc, d.uncompressedSize, d.out.n, nil
	}
	d.closed = true

	if d.method == MethodDeflated {
		if err = d.flateWriter.Close(); err != nil {
			return 0, 0, 0, err
		}
		d.pool.Put(d.flateWriter)
		d.flateWriter = nil
	}
	return d.crc, d.uncompressedSize, d.out.n, nil
}

// Inflater decompresses an entry's stored bytes while verifying the
// CRC-32 and uncompressed size declared in its header once the stream is
// fully consumed.
type Inflater struct {
	method           uint16
	src              io.Reader
	flateReader      io.ReadCloser
	crc              uint32
	uncompressedSize uint64
	wantCRC          uint32
	wantSize         uint64
	checked          bool
}

// NewInflater returns an Inflater for method reading compressed bytes from
// src. wantCRC and wantSize are the values declared in the entry's header
// (or its data descriptor, once read); Read surfaces ErrDecompression at
// end of stream if either does not match what was actually produced.
func NewInflater(method uint16, src io.Reader, wantCRC uint32, wantSize uint64) (*Inflater, error) {
	inf := &Inflater{method: method, src: src, wantCRC: wantCRC, wantSize: wantSize}
	switch method {
	case MethodStored:
	case MethodDeflated:
		inf.flateReader = flate.NewReader(src)
	default:
		return nil, fmt.Errorf("%w: compression method %d", ErrUnsupported, method)
	}
	return inf, nil
}

// Read decompresses into p, updating the running checksum. On io.EOF it
// validates the accumulated CRC-32 and size against the values supplied to
// NewInflater, converting a mismatch into ErrDecompression.
func (inf *Inflater) Read(p []byte) (int, error) {
	var n int
	var err error
	if inf.method == MethodStored {
		n, err = inf.src.Read(p)
	} else {
		n, err = inf.flateReader.Read(p)
	}

	if n > 0 {
		inf.crc = crc32.Update(inf.crc, crc32.IEEETable, p[:n])
		inf.uncompressedSize += uint64(n)
	}

	if err == io.EOF && !inf.checked {
		inf.checked = true
		if inf.crc != inf.wantCRC || inf.uncompressedSize != inf.wantSize {
			return n, fmt.Errorf("%w: crc or size mismatch after decompression", ErrDecompression)
		}
	}
	return n, err
}

// Close releases resources held by the underlying decompressor, if any.
func (inf *Inflater) Close() error {
	if inf.flateReader != nil {
		return inf.flateReader.Close()
	}
	return nil
}
