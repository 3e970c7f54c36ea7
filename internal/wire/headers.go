package wire

import (
	"fmt"
	"io"
	"math"
)

// LocalFileHeader is the fixed-size (30 byte) record that precedes every
// entry's compressed payload.
type LocalFileHeader struct {
	VersionNeededToExtract uint16
	GeneralPurposeBitFlag  uint16
	CompressionMethod      uint16
	LastModFileTime        uint16
	LastModFileDate        uint16
	CRC32                  uint32
	CompressedSize         uint32
	UncompressedSize       uint32
	FilenameLength         uint16
	ExtraFieldLength       uint16
	Filename               string
	ExtraField             []byte
}

// Encode renders the header and its trailing filename/extra-field bytes.
func (h LocalFileHeader) Encode() []byte {
	size := 30 + int(h.FilenameLength) + int(h.ExtraFieldLength)
	buf := make([]byte, size)

	PutUint32(buf[0:4], LocalFileHeaderSignature)
	PutUint16(buf[4:6], h.VersionNeededToExtract)
	PutUint16(buf[6:8], h.GeneralPurposeBitFlag)
	PutUint16(buf[8:10], h.CompressionMethod)
	PutUint16(buf[10:12], h.LastModFileTime)
	PutUint16(buf[12:14], h.LastModFileDate)
	PutUint32(buf[14:18], h.CRC32)
	PutUint32(buf[18:22], h.CompressedSize)
	PutUint32(buf[22:26], h.UncompressedSize)
	PutUint16(buf[26:28], h.FilenameLength)
	PutUint16(buf[28:30], h.ExtraFieldLength)
	copy(buf[30:], h.Filename)
	copy(buf[30+h.FilenameLength:], h.ExtraField)

	return buf
}

// ReadLocalFileHeader reads a LFH from src. The caller is responsible for
// having verified (or for verifying via ReadSignature) the leading
// signature; this function reads starting immediately after it.
func ReadLocalFileHeader(src io.Reader) (LocalFileHeader, error) {
	var buf [26]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return LocalFileHeader{}, fmt.Errorf("read local file header: %w", err)
	}

	h := LocalFileHeader{
		VersionNeededToExtract: GetUint16(buf[0:2]),
		GeneralPurposeBitFlag:  GetUint16(buf[2:4]),
		CompressionMethod:      GetUint16(buf[4:6]),
		LastModFileTime:        GetUint16(buf[6:8]),
		LastModFileDate:        GetUint16(buf[8:10]),
		CRC32:                  GetUint32(buf[10:14]),
		CompressedSize:         GetUint32(buf[14:18]),
		UncompressedSize:       GetUint32(buf[18:22]),
		FilenameLength:         GetUint16(buf[22:24]),
		ExtraFieldLength:       GetUint16(buf[24:26]),
	}

	if h.FilenameLength > 0 {
		name := make([]byte, h.FilenameLength)
		if _, err := io.ReadFull(src, name); err != nil {
			return LocalFileHeader{}, fmt.Errorf("read local header filename: %w", err)
		}
		h.Filename = string(name)
	}
	if h.ExtraFieldLength > 0 {
		extra := make([]byte, h.ExtraFieldLength)
		if _, err := io.ReadFull(src, extra); err != nil {
			return LocalFileHeader{}, fmt.Errorf("read local header extra field: %w", err)
		}
		h.ExtraField = extra
	}

	return h, nil
}

// CentralDirectoryHeader is one entry's record in the central directory.
type CentralDirectoryHeader struct {
	VersionMadeBy          uint16
	VersionNeededToExtract uint16
	GeneralPurposeBitFlag  uint16
	CompressionMethod      uint16
	LastModFileTime        uint16
	LastModFileDate        uint16
	CRC32                  uint32
	CompressedSize         uint32
	UncompressedSize       uint32
	FilenameLength         uint16
	ExtraFieldLength       uint16
	FileCommentLength      uint16
	DiskNumberStart        uint16
	InternalFileAttributes uint16
	ExternalFileAttributes uint32
	LocalHeaderOffset      uint32
	Filename               string
	ExtraField             []byte
	Comment                string
}

// Encode renders the CDFH record and its trailing variable-length fields.
func (d CentralDirectoryHeader) Encode() []byte {
	size := 46 + int(d.FilenameLength) + int(d.ExtraFieldLength) + int(d.FileCommentLength)
	buf := make([]byte, size)

	PutUint32(buf[0:4], CentralDirectorySignature)
	PutUint16(buf[4:6], d.VersionMadeBy)
	PutUint16(buf[6:8], d.VersionNeededToExtract)
	PutUint16(buf[8:10], d.GeneralPurposeBitFlag)
	PutUint16(buf[10:12], d.CompressionMethod)
	PutUint16(buf[12:14], d.LastModFileTime)
	PutUint16(buf[14:16], d.LastModFileDate)
	PutUint32(buf[16:20], d.CRC32)
	PutUint32(buf[20:24], d.CompressedSize)
	PutUint32(buf[24:28], d.UncompressedSize)
	PutUint16(buf[28:30], d.FilenameLength)
	PutUint16(buf[30:32], d.ExtraFieldLength)
	PutUint16(buf[32:34], d.FileCommentLength)
	PutUint16(buf[34:36], d.DiskNumberStart)
	PutUint16(buf[36:38], d.InternalFileAttributes)
	PutUint32(buf[38:42], d.ExternalFileAttributes)
	PutUint32(buf[42:46], d.LocalHeaderOffset)

	offset := 46
	offset += copy(buf[offset:], d.Filename)
	offset += copy(buf[offset:], d.ExtraField)
	copy(buf[offset:], d.Comment)

	return buf
}

// ReadCentralDirectoryHeader reads a CDFH starting immediately after its
// signature, which the caller must have already consumed/verified.
func ReadCentralDirectoryHeader(src io.Reader) (CentralDirectoryHeader, error) {
	var buf [42]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return CentralDirectoryHeader{}, fmt.Errorf("read central directory header: %w", err)
	}

	d := CentralDirectoryHeader{
		VersionMadeBy:          GetUint16(buf[0:2]),
		VersionNeededToExtract: GetUint16(buf[2:4]),
		GeneralPurposeBitFlag:  GetUint16(buf[4:6]),
		CompressionMethod:      GetUint16(buf[6:8]),
		LastModFileTime:        GetUint16(buf[8:10]),
		LastModFileDate:        GetUint16(buf[10:12]),
		CRC32:                  GetUint32(buf[12:16]),
		CompressedSize:         GetUint32(buf[16:20]),
		UncompressedSize:       GetUint32(buf[20:24]),
		FilenameLength:         GetUint16(buf[24:26]),
		ExtraFieldLength:       GetUint16(buf[26:28]),
		FileCommentLength:      GetUint16(buf[28:30]),
		DiskNumberStart:        GetUint16(buf[30:32]),
		InternalFileAttributes: GetUint16(buf[32:34]),
		ExternalFileAttributes: GetUint32(buf[34:38]),
		LocalHeaderOffset:      GetUint32(buf[38:42]),
	}

	if d.FilenameLength > 0 {
		name := make([]byte, d.FilenameLength)
		if _, err := io.ReadFull(src, name); err != nil {
			return CentralDirectoryHeader{}, fmt.Errorf("read central directory filename: %w", err)
		}
		d.Filename = string(name)
	}
	if d.ExtraFieldLength > 0 {
		extra := make([]byte, d.ExtraFieldLength)
		if _, err := io.ReadFull(src, extra); err != nil {
			return CentralDirectoryHeader{}, fmt.Errorf("read central directory extra field: %w", err)
		}
		d.ExtraField = extra
	}
	if d.FileCommentLength > 0 {
		comment := make([]byte, d.FileCommentLength)
		if _, err := io.ReadFull(src, comment); err != nil {
			return CentralDirectoryHeader{}, fmt.Errorf("read central directory comment: %w", err)
		}
		d.Comment = string(comment)
	}

	return d, nil
}

// DataDescriptor follows an entry's compressed bytes when general-purpose
// bit 3 is set, carrying the CRC and sizes that weren't known when the
// local file header was emitted.
type DataDescriptor struct {
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Zip64            bool // true if sizes must be written/read as 8 bytes
}

// Encode renders the descriptor with its optional leading signature
// (written unconditionally; APPNOTE marks it optional but virtually every
// reader, including this one, accepts it).
func (d DataDescriptor) Encode() []byte {
	if d.Zip64 {
		buf := make([]byte, 24)
		PutUint32(buf[0:4], DataDescriptorSignature)
		PutUint32(buf[4:8], d.CRC32)
		PutUint64(buf[8:16], d.CompressedSize)
		PutUint64(buf[16:24], d.UncompressedSize)
		return buf
	}
	buf := make([]byte, 16)
	PutUint32(buf[0:4], DataDescriptorSignature)
	PutUint32(buf[4:8], d.CRC32)
	PutUint32(buf[8:12], uint32(d.CompressedSize))
	PutUint32(buf[12:16], uint32(d.UncompressedSize))
	return buf
}

// ReadDataDescriptor reads a data descriptor, tolerating the optional
// leading signature, in 32-bit (non-ZIP64) form.
func ReadDataDescriptor(src io.Reader) (DataDescriptor, error) {
	var buf [12]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return DataDescriptor{}, fmt.Errorf("read data descriptor: %w", err)
	}
	if GetUint32(buf[0:4]) == DataDescriptorSignature {
		var rest [12]byte
		copy(rest[:8], buf[4:12])
		if _, err := io.ReadFull(src, rest[8:]); err != nil {
			return DataDescriptor{}, fmt.Errorf("read data descriptor body: %w", err)
		}
		return DataDescriptor{
			CRC32:            GetUint32(rest[0:4]),
			CompressedSize:   uint64(GetUint32(rest[4:8])),
			UncompressedSize: uint64(GetUint32(rest[8:12])),
		}, nil
	}
	return DataDescriptor{
		CRC32:            GetUint32(buf[0:4]),
		CompressedSize:   uint64(GetUint32(buf[4:8])),
		UncompressedSize: uint64(GetUint32(buf[8:12])),
	}, nil
}

// EndOfCentralDirectory is the 22-byte-plus-comment footer of every ZIP
// archive.
type EndOfCentralDirectory struct {
	ThisDiskNum                     uint16
	DiskNumWithTheStartOfCentralDir uint16
	TotalNumberOfEntriesOnThisDisk  uint16
	TotalNumberOfEntries            uint16
	CentralDirSize                  uint32
	CentralDirOffset                uint32
	CommentLength                   uint16
	Comment                         string
}

// EncodeEndOfCentralDir renders an EOCD record, saturating 32-bit fields at
// 0xFFFFFFFF/0xFFFF when the real value requires ZIP64.
func EncodeEndOfCentralDir(entries int, centralDirSize, centralDirOffset uint64, comment string) []byte {
	commentLen := min(len(comment), math.MaxUint16)
	buf := make([]byte, 22+commentLen)

	PutUint32(buf[0:4], EndOfCentralDirSignature)
	PutUint16(buf[4:6], 0)
	PutUint16(buf[6:8], 0)
	PutUint16(buf[8:10], uint16(min(math.MaxUint16, entries)))
	PutUint16(buf[10:12], uint16(min(math.MaxUint16, entries)))
	PutUint32(buf[12:16], uint32(min(uint64(math.MaxUint32), centralDirSize)))
	PutUint32(buf[16:20], uint32(min(uint64(math.MaxUint32), centralDirOffset)))
	PutUint16(buf[20:22], uint16(commentLen))
	copy(buf[22:], comment[:commentLen])

	return buf
}

// ReadEndOfCentralDir reads an EOCD record starting immediately after its
// signature.
func ReadEndOfCentralDir(src io.Reader) (EndOfCentralDirectory, error) {
	var buf [18]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return EndOfCentralDirectory{}, fmt.Errorf("read end of central directory: %w", err)
	}

	end := EndOfCentralDirectory{
		ThisDiskNum:                     GetUint16(buf[0:2]),
		DiskNumWithTheStartOfCentralDir: GetUint16(buf[2:4]),
		TotalNumberOfEntriesOnThisDisk:  GetUint16(buf[4:6]),
		TotalNumberOfEntries:            GetUint16(buf[6:8]),
		CentralDirSize:                  GetUint32(buf[8:12]),
		CentralDirOffset:                GetUint32(buf[12:16]),
		CommentLength:                   GetUint16(buf[16:18]),
	}

	if end.CommentLength > 0 {
		comment := make([]byte, end.CommentLength)
		if _, err := io.ReadFull(src, comment); err != nil {
			return EndOfCentralDirectory{}, fmt.Errorf("read archive comment: %w", err)
		}
		end.Comment = string(comment)
	}

	return end, nil
}

// Zip64EndOfCentralDirectory carries the 64-bit fields the plain EOCD can't.
type Zip64EndOfCentralDirectory struct {
	VersionMadeBy                   uint16
	VersionNeededToExtract          uint16
	ThisDiskNum                     uint32
	DiskNumWithTheStartOfCentralDir uint32
	TotalNumberOfEntriesOnThisDisk  uint64
	TotalNumberOfEntries            uint64
	CentralDirSize                  uint64
	CentralDirOffset                uint64
}

// EncodeZip64EndOfCentralDir renders the ZIP64 EOCD record. Version fields
// are fixed at 4.5 (45), the version needed for ZIP64 support.
func EncodeZip64EndOfCentralDir(entries, centralDirSize, centralDirOffset uint64) []byte {
	buf := make([]byte, 56)

	PutUint32(buf[0:4], Zip64EndOfCentralDirSignature)
	PutUint64(buf[4:12], 44) // size of record following this field
	PutUint16(buf[12:14], 45)
	PutUint16(buf[14:16], 45)
	PutUint32(buf[16:20], 0)
	PutUint32(buf[20:24], 0)
	PutUint64(buf[24:32], entries)
	PutUint64(buf[32:40], entries)
	PutUint64(buf[40:48], centralDirSize)
	PutUint64(buf[48:56], centralDirOffset)

	return buf
}

// ReadZip64EndOfCentralDir reads a ZIP64 EOCD record starting immediately
// after its signature.
func ReadZip64EndOfCentralDir(src io.Reader) (Zip64EndOfCentralDirectory, error) {
	var buf [52]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return Zip64EndOfCentralDirectory{}, fmt.Errorf("read zip64 end of central directory: %w", err)
	}

	return Zip64EndOfCentralDirectory{
		VersionMadeBy:                   GetUint16(buf[8:10]),
		VersionNeededToExtract:          GetUint16(buf[10:12]),
		ThisDiskNum:                     GetUint32(buf[12:16]),
		DiskNumWithTheStartOfCentralDir: GetUint32(buf[16:20]),
		TotalNumberOfEntriesOnThisDisk:  GetUint64(buf[20:28]),
		TotalNumberOfEntries:            GetUint64(buf[28:36]),
		CentralDirSize:                  GetUint64(buf[36:44]),
		CentralDirOffset:                GetUint64(buf[44:52]),
	}, nil
}

// Zip64EndOfCentralDirLocator points at the ZIP64 EOCD record from a fixed
// position just before the plain EOCD.
type Zip64EndOfCentralDirLocator struct {
	EndOfCentralDirStartDiskNum uint32
	Zip64EndOfCentralDirOffset  uint64
	TotalNumberOfDisks          uint32
}

// EncodeZip64EndOfCentralDirLocator renders the locator record.
func EncodeZip64EndOfCentralDirLocator(zip64EndOfCentralDirOffset uint64) []byte {
	buf := make([]byte, 20)

	PutUint32(buf[0:4], Zip64EndOfCentralDirLocatorSignature)
	PutUint32(buf[4:8], 0)
	PutUint64(buf[8:16], zip64EndOfCentralDirOffset)
	PutUint32(buf[16:20], 1)

	return buf
}

// ReadZip64EndOfCentralDirLocator reads the locator starting immediately
// after its signature.
func ReadZip64EndOfCentralDirLocator(src io.Reader) (Zip64EndOfCentralDirLocator, error) {
	var buf [16]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return Zip64EndOfCentralDirLocator{}, fmt.Errorf("read zip64 locator: %w", err)
	}

	return Zip64EndOfCentralDirLocator{
		EndOfCentralDirStartDiskNum: GetUint32(buf[0:4]),
		Zip64EndOfCentralDirOffset:  GetUint64(buf[4:12]),
		TotalNumberOfDisks:          GetUint32(buf[12:16]),
	}, nil
}
