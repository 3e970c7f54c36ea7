// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/haldane-loop/zipcore/internal/wire"
)

// CentralDirectoryLocation records where a parsed central directory lives
// within its backing stream, resolved from either the plain EOCD or its
// ZIP64 extension.
type CentralDirectoryLocation struct {
	Offset  uint64
	Size    uint64
	Entries int
	Comment string
}

// ReadCentralDirectory scans src (whose total size is size) backward for
// the End Of Central Directory record, follows its ZIP64 locator/record
// when the plain EOCD's fields are saturated, and reads every Central
// Directory File Header it describes into an EntrySet in on-disk order.
func ReadCentralDirectory(src io.ReaderAt, size int64) (*EntrySet, CentralDirectoryLocation, error) {
	eocdOffset, err := wire.ScanForSignature(src, size, wire.EndOfCentralDirSignature, wire.MaxTrailingSearch)
	if err != nil {
		return nil, CentralDirectoryLocation{}, fmt.Errorf("%w: end of central directory not found: %v", ErrMalformedArchive, err)
	}

	eocd, err := wire.ReadEndOfCentralDir(io.NewSectionReader(src, eocdOffset+4, size-eocdOffset-4))
	if err != nil {
		return nil, CentralDirectoryLocation{}, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	loc := CentralDirectoryLocation{
		Offset:  uint64(eocd.CentralDirOffset),
		Size:    uint64(eocd.CentralDirSize),
		Entries: int(eocd.TotalNumberOfEntries),
		Comment: eocd.Comment,
	}

	needsZip64 := eocd.TotalNumberOfEntries == math.MaxUint16 ||
		eocd.CentralDirSize == math.MaxUint32 ||
		eocd.CentralDirOffset == math.MaxUint32

	if needsZip64 {
		if loc, err = resolveZip64Location(src, eocdOffset); err != nil {
			return nil, CentralDirectoryLocation{}, err
		}
		loc.Comment = eocd.Comment
	}

	set := NewEntrySet()
	if loc.Entries == 0 {
		return set, loc, nil
	}

	cdReader := io.NewSectionReader(src, int64(loc.Offset), int64(loc.Size))
	for i := 0; i < loc.Entries; i++ {
		ok, err := wire.ReadSignature(cdReader, wire.CentralDirectorySignature)
		if err != nil {
			return nil, CentralDirectoryLocation{}, fmt.Errorf("%w: reading central directory entry %d: %v", ErrMalformedArchive, i, err)
		}
		if !ok {
			return nil, CentralDirectoryLocation{}, fmt.Errorf("%w: central directory entry %d has a bad signature", ErrMalformedArchive, i)
		}

		e := &Entry{}
		if err := e.ReadCentralDirEntry(cdReader); err != nil {
			return nil, CentralDirectoryLocation{}, err
		}
		if err := set.Insert(e); err != nil {
			return nil, CentralDirectoryLocation{}, fmt.Errorf("%w: duplicate entry %q in central directory", ErrMalformedArchive, e.Name())
		}
	}

	if set.Len() != loc.Entries {
		return nil, CentralDirectoryLocation{}, fmt.Errorf("%w: central directory declared %d entries, read %d", ErrMalformedArchive, loc.Entries, set.Len())
	}

	return set, loc, nil
}

// resolveZip64Location finds the ZIP64 locator just before the plain EOCD,
// follows it to the ZIP64 EOCD record, and returns the 64-bit location it
// carries.
func resolveZip64Location(src io.ReaderAt, eocdOffset int64) (CentralDirectoryLocation, error) {
	locatorOffset, err := wire.ScanForSignature(src, eocdOffset, wire.Zip64EndOfCentralDirLocatorSignature, wire.MaxTrailingSearch)
	if err != nil {
		return CentralDirectoryLocation{}, fmt.Errorf("%w: zip64 locator not found: %v", ErrMalformedArchive, err)
	}

	locator, err := wire.ReadZip64EndOfCentralDirLocator(io.NewSectionReader(src, locatorOffset+4, eocdOffset-locatorOffset-4))
	if err != nil {
		return CentralDirectoryLocation{}, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	sig, err := wire.PeekSignature(src, int64(locator.Zip64EndOfCentralDirOffset))
	if err != nil || sig != wire.Zip64EndOfCentralDirSignature {
		return CentralDirectoryLocation{}, fmt.Errorf("%w: zip64 end of central directory signature mismatch", ErrMalformedArchive)
	}

	z64, err := wire.ReadZip64EndOfCentralDir(io.NewSectionReader(src, int64(locator.Zip64EndOfCentralDirOffset)+4, locatorOffset-int64(locator.Zip64EndOfCentralDirOffset)-4))
	if err != nil {
		return CentralDirectoryLocation{}, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	return CentralDirectoryLocation{
		Offset:  z64.CentralDirOffset,
		Size:    z64.CentralDirSize,
		Entries: int(z64.TotalNumberOfEntries),
	}, nil
}

// WriteCentralDirectory emits one CDFH per entry of set in insertion order,
// then a ZIP64 EOCD and locator (when overflow demands it or forceZip64
// asks for it pre-emptively), then the plain EOCD carrying comment.
// startOffset is the absolute position in the backing stream where the
// central directory begins.
func WriteCentralDirectory(w io.Writer, set *EntrySet, startOffset uint64, comment string, forceZip64 bool) error {
	var buf bytes.Buffer
	for _, e := range set.Entries() {
		if err := e.WriteCentralDirEntry(&buf); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	cdirSize := uint64(buf.Len())
	entries := set.Len()

	needsZip64 := forceZip64 ||
		entries > math.MaxUint16 ||
		cdirSize > math.MaxUint32 ||
		startOffset > math.MaxUint32
	if !needsZip64 {
		for _, e := range set.Entries() {
			if e.LocalHeaderOffset() > math.MaxUint32 {
				needsZip64 = true
				break
			}
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	if needsZip64 {
		z64Offset := startOffset + cdirSize
		if _, err := w.Write(wire.EncodeZip64EndOfCentralDir(uint64(entries), cdirSize, startOffset)); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		if _, err := w.Write(wire.EncodeZip64EndOfCentralDirLocator(z64Offset)); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	if _, err := w.Write(wire.EncodeEndOfCentralDir(entries, cdirSize, startOffset, comment)); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
