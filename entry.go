// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/haldane-loop/zipcore/internal/sys"
	"github.com/haldane-loop/zipcore/internal/wire"
)

// ContentSource supplies an entry's uncompressed bytes. A dirty Entry's
// source is consulted on commit; a non-dirty Entry's source is only ever
// spliced raw (see RawContentSource), never decompressed and recompressed.
type ContentSource interface {
	Open() (io.ReadCloser, error)
}

// RawContentSource additionally exposes the entry's already-compressed
// bytes exactly as stored, so OutputStream.CopyRawEntry can splice them
// without touching the codec. Only entries read back from an existing
// archive implement this.
type RawContentSource interface {
	ContentSource
	OpenRaw() (io.ReadCloser, error)
}

type pathSource struct{ path string }

func (s pathSource) Open() (io.ReadCloser, error) { return os.Open(s.path) }

type bufferSource struct{ data []byte }

func (s bufferSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

type symlinkSource struct{ target string }

func (s symlinkSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.target)), nil
}

// Entry is one member of an archive: its metadata, codec flags, and a
// handle to its content. Entries are constructed directly or produced by
// CentralDirectory/InputStream while reading an existing archive.
type Entry struct {
	name    string
	comment string
	extra   *ExtraField

	compressionMethod uint16
	compressionLevel  int
	gpFlags           uint16

	crc            uint32
	compressedSize uint64
	size           uint64

	time time.Time

	unixPerms *uint32
	unixUID   *uint16
	unixGID   *uint16

	externalFileAttributes uint32
	versionNeededToExtract uint16
	versionMadeBy          uint16
	hostSystem             sys.HostSystem

	localHeaderOffset uint64
	dirty             bool

	source ContentSource
}

// NewEntry constructs a file entry with no content source attached; call
// SetSource before writing it. compressionLevel -1 requests the codec's
// default.
func NewEntry(name string) (*Entry, error) {
	if err := validateEntryName(name); err != nil {
		return nil, err
	}
	return &Entry{
		name:              name,
		extra:             NewExtraField(),
		compressionMethod: MethodDeflated,
		compressionLevel:  -1,
		time:              time.Now(),
		hostSystem:        sys.GetHostSystemByOS(),
		dirty:             true,
	}, nil
}

// NewDirectoryEntry constructs a directory entry. name is given a trailing
// "/" if it does not already have one.
func NewDirectoryEntry(name string) (*Entry, error) {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	if err := validateEntryName(name); err != nil {
		return nil, err
	}
	return &Entry{
		name:              name,
		extra:             NewExtraField(),
		compressionMethod: MethodStored,
		compressionLevel:  -1,
		time:              time.Now(),
		hostSystem:        sys.GetHostSystemByOS(),
		dirty:             true,
	}, nil
}

// validateEntryName enforces the naming constraints construction must
// reject up front: a name must be non-empty, must not begin with "/", and
// must fit in 65535 bytes.
func validateEntryName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: entry name must not be empty", ErrEntryName)
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: entry name must not begin with \"/\": %q", ErrEntryName, name)
	}
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("%w: entry name exceeds 65535 bytes", ErrEntryName)
	}
	return nil
}

// NewPathEntry builds a dirty Entry from a filesystem path, using name as
// its path inside the archive. Symlinks are recorded as regular file
// entries whose content is the link target text.
func NewPathEntry(srcPath, name string) (*Entry, error) {
	info, err := os.Lstat(srcPath)
	if err != nil {
		return nil, err
	}

	isSymlink := info.Mode()&fs.ModeSymlink != 0
	var linkTarget string
	if isSymlink {
		linkTarget, err = os.Readlink(srcPath)
		if err != nil {
			return nil, fmt.Errorf("read link %q: %w", srcPath, err)
		}
	}

	var e *Entry
	if info.IsDir() {
		e, err = NewDirectoryEntry(name)
	} else {
		e, err = NewEntry(name)
	}
	if err != nil {
		return nil, err
	}

	e.time = info.ModTime()
	e.hostSystem = sys.GetHostSystemByOS()

	if !info.IsDir() {
		mode := uint32(info.Mode().Perm())
		e.unixPerms = &mode
		if uid, gid, ok := sys.GetOwnership(info); ok {
			u16, g16 := uint16(uid), uint16(gid)
			e.unixUID, e.unixGID = &u16, &g16
		}
	}

	switch {
	case isSymlink:
		e.size = uint64(len(linkTarget))
		e.source = symlinkSource{target: linkTarget}
	case !info.IsDir():
		e.size = uint64(info.Size())
		e.source = pathSource{path: srcPath}
	}

	e.externalFileAttributes = externalAttributesFor(e, info.Mode(), isSymlink)
	return e, nil
}

// NewBufferEntry builds a dirty Entry whose content is an in-memory byte
// slice.
func NewBufferEntry(name string, data []byte) (*Entry, error) {
	e, err := NewEntry(name)
	if err != nil {
		return nil, err
	}
	e.size = uint64(len(data))
	e.source = bufferSource{data: data}
	return e, nil
}

// Name returns the entry's path within the archive.
func (e *Entry) Name() string { return e.name }

// File reports whether this entry is a regular file (not a directory).
func (e *Entry) File() bool { return !e.Directory() }

// Directory reports whether this entry's name ends in "/".
func (e *Entry) Directory() bool { return strings.HasSuffix(e.name, "/") }

// Parent returns the greatest prefix of Name ending in "/", not counting
// a trailing "/" that is part of the entry's own name, and false when the
// entry has no parent (a top-level entry).
func (e *Entry) Parent() (string, bool) {
	name := e.name
	if e.Directory() {
		name = name[:len(name)-1]
	}
	idx := strings.LastIndexByte(name, '/')
	if idx < 0 {
		return "", false
	}
	return name[:idx+1], true
}

// Comment returns the entry's free-text comment.
func (e *Entry) Comment() string { return e.comment }

// SetComment sets the entry's free-text comment.
func (e *Entry) SetComment(c string) { e.comment = c }

// Extra returns the entry's ExtraField, creating one if absent.
func (e *Entry) Extra() *ExtraField {
	if e.extra == nil {
		e.extra = NewExtraField()
	}
	return e.extra
}

// CompressionMethod returns the entry's compression method tag.
func (e *Entry) CompressionMethod() uint16 { return e.compressionMethod }

// SetCompressionMethod sets the entry's compression method. Directory
// entries always encode as MethodStored regardless of this setting.
func (e *Entry) SetCompressionMethod(method uint16) { e.compressionMethod = method }

// CompressionLevel returns the entry's requested DEFLATE level, or -1 for
// the codec default.
func (e *Entry) CompressionLevel() int { return e.compressionLevel }

// SetCompressionLevel sets the entry's requested DEFLATE level.
func (e *Entry) SetCompressionLevel(level int) { e.compressionLevel = level }

// CRC32 returns the entry's CRC-32 over its uncompressed bytes.
func (e *Entry) CRC32() uint32 { return e.crc }

// CompressedSize returns the entry's size on disk, in bytes.
func (e *Entry) CompressedSize() uint64 { return e.compressedSize }

// Size returns the entry's uncompressed size, in bytes.
func (e *Entry) Size() uint64 { return e.size }

// Time returns the entry's modification time at DOSTime (2-second)
// resolution.
func (e *Entry) Time() time.Time { return At(e.time).Time() }

// SetTime sets the entry's modification time.
func (e *Entry) SetTime(t time.Time) { e.time = t }

// UnixPerms returns the entry's recorded Unix permission bits, if any.
func (e *Entry) UnixPerms() (fs.FileMode, bool) {
	if e.unixPerms == nil {
		return 0, false
	}
	return fs.FileMode(*e.unixPerms), true
}

// UnixOwner returns the entry's recorded UID/GID, if any.
func (e *Entry) UnixOwner() (uid, gid uint16, ok bool) {
	if e.unixUID == nil || e.unixGID == nil {
		return 0, 0, false
	}
	return *e.unixUID, *e.unixGID, true
}

// VersionNeededToExtract returns the PKWARE version recorded when this
// entry was parsed from an existing archive's LFH/CDFH.
func (e *Entry) VersionNeededToExtract() uint16 { return e.versionNeededToExtract }

// VersionMadeBy returns the PKWARE version/host-system byte pair recorded
// when this entry was parsed from an existing archive's CDFH.
func (e *Entry) VersionMadeBy() uint16 { return e.versionMadeBy }

// ExternalFileAttributes returns the raw external attributes field (the
// upper 16 bits hold the Unix mode on Unix-origin archives).
func (e *Entry) ExternalFileAttributes() uint32 { return e.externalFileAttributes }

// HostSystem returns the host system this entry was created on or read
// from.
func (e *Entry) HostSystem() sys.HostSystem { return e.hostSystem }

// LocalHeaderOffset returns the byte offset of this entry's LFH within the
// backing stream. Only meaningful for entries read from an existing
// archive.
func (e *Entry) LocalHeaderOffset() uint64 { return e.localHeaderOffset }

// Dirty reports whether the entry has pending content that must be
// re-encoded on commit.
func (e *Entry) Dirty() bool { return e.dirty }

// MarkDirty flags the entry for re-encoding on the next commit.
func (e *Entry) MarkDirty() { e.dirty = true }

// SetSource replaces the entry's content source and marks it dirty, since
// its previously computed sizes/CRC no longer describe the new content.
func (e *Entry) SetSource(src ContentSource) {
	e.source = src
	e.dirty = true
}

// Source returns the entry's current content source, or nil.
func (e *Entry) Source() ContentSource { return e.source }

// Encrypted reports whether general-purpose bit 0 is set.
func (e *Entry) Encrypted() bool { return e.gpFlags&wire.FlagEncrypted != 0 }

// Incomplete reports whether general-purpose bit 3 (data-descriptor-
// follows) is set.
func (e *Entry) Incomplete() bool { return e.gpFlags&wire.FlagDataDescriptor != 0 }

// RequiresZip64 reports whether any of this entry's fields overflow the
// 32-bit header slots and must instead carry a ZIP64 extra field.
func (e *Entry) RequiresZip64() bool {
	return e.size > math.MaxUint32 ||
		e.compressedSize > math.MaxUint32 ||
		e.localHeaderOffset > math.MaxUint32
}

// Compare orders two entries lexicographically by name, implementing the
// spec's Entry <=> relation.
func (e *Entry) Compare(other *Entry) int { return strings.Compare(e.name, other.name) }

// Equal compares two entries by (name, extra, compressed_size, crc,
// compression_method, size) only — comment and timestamps are excluded.
func (e *Entry) Equal(other *Entry) bool {
	if other == nil {
		return false
	}
	if e.name != other.name || e.compressedSize != other.compressedSize ||
		e.crc != other.crc || e.compressionMethod != other.compressionMethod ||
		e.size != other.size {
		return false
	}
	return bytes.Equal(e.Extra().Encode(), other.Extra().Encode())
}

// compressionLevelFlagBits implements the §4.4 level->flag-bits table.
func compressionLevelFlagBits(level int) uint16 {
	switch level {
	case 1:
		return 0x0006
	case 2:
		return 0x0004
	case 8, 9:
		return 0x0002
	default:
		return 0x0000
	}
}

// gpFlagsForWrite computes the general-purpose bit flags to emit, applying
// the compression-level hint only for non-directory DEFLATED entries and
// always setting bit 11 (EFS/UTF-8) for a non-ASCII name or comment.
func (e *Entry) gpFlagsForWrite(incomplete bool) uint16 {
	flags := e.gpFlags &^ (wire.FlagDataDescriptor | 0x0006)
	if e.Encrypted() {
		flags |= wire.FlagEncrypted
	}
	if incomplete {
		flags |= wire.FlagDataDescriptor
	}
	if e.compressionMethod == MethodDeflated && e.File() {
		flags |= compressionLevelFlagBits(e.compressionLevel)
	}
	if hasNonASCII(e.name) || hasNonASCII(e.comment) {
		flags |= wire.FlagLanguageEncoding
	}
	return flags
}

func hasNonASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return true
		}
	}
	return false
}

func versionFor(e *Entry) uint16 {
	return versionForZip64(e.RequiresZip64())
}

func versionForZip64(zip64 bool) uint16 {
	if zip64 {
		return 45
	}
	return 20
}

func externalAttributesFor(e *Entry, mode fs.FileMode, isSymlink bool) uint32 {
	if e.hostSystem != sys.HostSystemUNIX && e.hostSystem != sys.HostSystemDarwin {
		var attrs uint32
		if e.Directory() {
			attrs |= 0x10
		} else {
			attrs |= 0x20
		}
		if mode&0200 == 0 {
			attrs |= 0x01
		}
		return attrs
	}

	perm := uint32(mode.Perm())
	switch {
	case e.Directory():
		perm |= sys.S_IFDIR
	case isSymlink:
		perm |= sys.S_IFLNK
	default:
		perm |= sys.S_IFREG
	}
	return perm << 16
}

// WriteLocalHeader emits this entry's LFH to w. Sizes/CRC are zeroed,
// pending a trailing Data Descriptor, whenever the entry's incomplete flag
// (general-purpose bit 3) is set.
func (e *Entry) WriteLocalHeader(w io.Writer) error {
	return e.writeLocalHeader(w, false)
}

// writeLocalHeader is WriteLocalHeader's implementation, parameterized by
// forceZip64: OutputStream sets this when it must reserve ZIP64 extra-field
// space in a header it intends to back-patch later, before the entry's
// final size is known, so the reserved and actual header lengths always
// agree.
func (e *Entry) writeLocalHeader(w io.Writer, forceZip64 bool) error {
	zip64 := !e.Incomplete() && (e.RequiresZip64() || forceZip64)
	extra := e.localExtraField(zip64)
	dt := At(e.time)
	date, clock := dt.Packed()

	var crc, compSize, uncompSize uint32
	if !e.Incomplete() {
		crc = e.crc
		if zip64 {
			compSize, uncompSize = math.MaxUint32, math.MaxUint32
		} else {
			compSize = uint32(e.compressedSize)
			uncompSize = uint32(e.size)
		}
	}

	h := wire.LocalFileHeader{
		VersionNeededToExtract: versionForZip64(zip64),
		GeneralPurposeBitFlag:  e.gpFlagsForWrite(e.Incomplete()),
		CompressionMethod:      e.wireCompressionMethod(),
		LastModFileTime:        clock,
		LastModFileDate:        date,
		CRC32:                  crc,
		CompressedSize:         compSize,
		UncompressedSize:       uncompSize,
		FilenameLength:         uint16(len(e.name)),
		ExtraFieldLength:       uint16(len(extra)),
		Filename:               e.name,
		ExtraField:             extra,
	}
	_, err := w.Write(h.Encode())
	return err
}

func (e *Entry) wireCompressionMethod() uint16 {
	if e.Directory() {
		return MethodStored
	}
	return e.compressionMethod
}

// localExtraField builds the extra-field payload for the LFH: the base
// ExtraField plus a ZIP64 record carrying both sizes together when zip64
// is true. Both fields are always written together (even if only one
// individually overflows) so they pair with the header's sentinel values,
// which are likewise always set together — see WriteLocalHeader.
func (e *Entry) localExtraField(zip64 bool) []byte {
	base := e.Extra().Encode()
	if !zip64 {
		return base
	}
	size, compSize := e.size, e.compressedSize
	z := EncodeZip64(Zip64Data{UncompressedSize: &size, CompressedSize: &compSize})
	var rec [4]byte
	wire.PutUint16(rec[0:2], ExtraZip64)
	wire.PutUint16(rec[2:4], uint16(len(z)))
	return append(append(rec[:], z...), base...)
}

// ReadLocalHeader parses an LFH at the current position of r (which must
// already be positioned just past the 0x04034b50 signature) and populates
// this entry's codec fields from it.
func (e *Entry) ReadLocalHeader(r io.Reader) error {
	h, err := wire.ReadLocalFileHeader(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	e.name = h.Filename
	e.compressionMethod = h.CompressionMethod
	e.gpFlags = h.GeneralPurposeBitFlag
	e.crc = h.CRC32
	e.compressedSize = uint64(h.CompressedSize)
	e.size = uint64(h.UncompressedSize)
	e.time = FromPacked(h.LastModFileDate, h.LastModFileTime).Time()

	extra, err := DecodeExtraField(h.ExtraField)
	if err != nil {
		return err
	}
	e.extra = extra
	e.applyZip64Extra(h.CompressedSize == math.MaxUint32, h.UncompressedSize == math.MaxUint32, false)
	return nil
}

// ReadCentralDirEntry parses a CDFH at the current position of r (just
// past the 0x02014b50 signature) and populates this entry from it,
// including fields only the central directory carries.
func (e *Entry) ReadCentralDirEntry(r io.Reader) error {
	d, err := wire.ReadCentralDirectoryHeader(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	e.name = d.Filename
	e.comment = d.Comment
	e.versionMadeBy = d.VersionMadeBy
	e.versionNeededToExtract = d.VersionNeededToExtract
	e.compressionMethod = d.CompressionMethod
	e.gpFlags = d.GeneralPurposeBitFlag
	e.crc = d.CRC32
	e.compressedSize = uint64(d.CompressedSize)
	e.size = uint64(d.UncompressedSize)
	e.time = FromPacked(d.LastModFileDate, d.LastModFileTime).Time()
	e.externalFileAttributes = d.ExternalFileAttributes
	e.localHeaderOffset = uint64(d.LocalHeaderOffset)
	e.hostSystem = sys.HostSystem(d.VersionMadeBy >> 8)
	if (e.hostSystem == sys.HostSystemUNIX || e.hostSystem == sys.HostSystemDarwin) && d.ExternalFileAttributes>>16 != 0 {
		mode := (d.ExternalFileAttributes >> 16) & 0o777
		e.unixPerms = &mode
	}

	extra, err := DecodeExtraField(d.ExtraField)
	if err != nil {
		return err
	}
	e.extra = extra
	e.applyZip64Extra(
		d.CompressedSize == math.MaxUint32,
		d.UncompressedSize == math.MaxUint32,
		d.LocalHeaderOffset == math.MaxUint32,
	)
	return nil
}

// applyZip64Extra overwrites the 32-bit fields whose header slot was
// saturated to 0xFFFFFFFF with the real 64-bit values from the ZIP64
// extra field, if present.
func (e *Entry) applyZip64Extra(wantCompressed, wantUncompressed, wantOffset bool) {
	if !wantCompressed && !wantUncompressed && !wantOffset {
		return
	}
	payload, ok := e.extra.Get(ExtraZip64)
	if !ok {
		return
	}
	// ZIP64 payload order is fixed: uncompressed, compressed, offset, disk —
	// independent of which 32-bit slots triggered it, per APPNOTE 4.5.3.
	z, err := DecodeZip64(payload, wantUncompressed, wantCompressed, wantOffset, false)
	if err != nil {
		return
	}
	if z.UncompressedSize != nil {
		e.size = *z.UncompressedSize
	}
	if z.CompressedSize != nil {
		e.compressedSize = *z.CompressedSize
	}
	if z.LocalHeaderOffset != nil {
		e.localHeaderOffset = *z.LocalHeaderOffset
	}
}

// WriteCentralDirEntry emits this entry's CDFH to w, auto-inserting a
// ZIP64 extra field whenever any field overflows 32 bits. When zip64 is
// required, all three 32-bit slots (compressed size, uncompressed size,
// local header offset) are set to the sentinel together and all three
// real values are written to the extra field together, so a reader never
// has to reconcile a partial sentinel set against a partial payload.
func (e *Entry) WriteCentralDirEntry(w io.Writer) error {
	zip64 := e.RequiresZip64()
	extra := e.centralExtraField(zip64)
	dt := At(e.time)
	date, clock := dt.Packed()

	versionMadeBy := uint16(normalizeHostSystem(e.hostSystem))<<8 | versionFor(e)

	compSize, uncompSize, offset := uint32(e.compressedSize), uint32(e.size), uint32(e.localHeaderOffset)
	if zip64 {
		compSize, uncompSize, offset = math.MaxUint32, math.MaxUint32, math.MaxUint32
	}

	d := wire.CentralDirectoryHeader{
		VersionMadeBy:          versionMadeBy,
		VersionNeededToExtract: versionFor(e),
		GeneralPurposeBitFlag:  e.gpFlagsForWrite(e.Incomplete()),
		CompressionMethod:      e.wireCompressionMethod(),
		LastModFileTime:        clock,
		LastModFileDate:        date,
		CRC32:                  e.crc,
		CompressedSize:         compSize,
		UncompressedSize:       uncompSize,
		FilenameLength:         uint16(len(e.name)),
		ExtraFieldLength:       uint16(len(extra)),
		FileCommentLength:      uint16(len(e.comment)),
		ExternalFileAttributes: e.externalFileAttributes,
		LocalHeaderOffset:      offset,
		Filename:               e.name,
		ExtraField:             extra,
		Comment:                e.comment,
	}
	_, err := w.Write(d.Encode())
	return err
}

func normalizeHostSystem(h sys.HostSystem) sys.HostSystem {
	if h == sys.HostSystemNTFS {
		return sys.HostSystemFAT
	}
	return h
}

// centralExtraField builds the CDFH extra-field payload: the base
// ExtraField plus a ZIP64 record (uncompressed size, compressed size,
// local header offset, in that fixed order) whenever this entry requires
// one.
func (e *Entry) centralExtraField(zip64 bool) []byte {
	base := e.Extra().Encode()
	if !zip64 {
		return base
	}
	size, compSize, offset := e.size, e.compressedSize, e.localHeaderOffset
	z := EncodeZip64(Zip64Data{UncompressedSize: &size, CompressedSize: &compSize, LocalHeaderOffset: &offset})
	var rec [4]byte
	wire.PutUint16(rec[0:2], ExtraZip64)
	wire.PutUint16(rec[2:4], uint16(len(z)))
	return append(append(rec[:], z...), base...)
}
