// Package wire encodes and decodes the on-disk records of a ZIP archive:
// the Local File Header, the Central Directory File Header, the End Of
// Central Directory record and its ZIP64 variants, and the byte-level
// primitives (little-endian integers, backward signature scan) those
// records are built from.
package wire

// Record signatures. Every record begins with the two-byte marker 0x4b50
// ("PK") followed by two bytes identifying the record type.
const (
	LocalFileHeaderSignature             uint32 = 0x04034b50
	DataDescriptorSignature              uint32 = 0x08074b50
	CentralDirectorySignature            uint32 = 0x02014b50
	EndOfCentralDirSignature             uint32 = 0x06054b50
	Zip64EndOfCentralDirSignature        uint32 = 0x06064b50
	Zip64EndOfCentralDirLocatorSignature uint32 = 0x07064b50
)

// Compression method tags recognised at the wire level. zipcore only ships
// codecs for Stored and Deflated; any other value round-trips through the
// header but is rejected on decode.
const (
	Stored   uint16 = 0
	Deflated uint16 = 8
)

// General-purpose bit flag positions used by the entry codec.
const (
	FlagEncrypted        uint16 = 1 << 0
	FlagDeflateSuperFast uint16 = 0x0006
	FlagDeflateFast      uint16 = 0x0004
	FlagDeflateMaximum   uint16 = 0x0002
	FlagDataDescriptor   uint16 = 1 << 3
	FlagLanguageEncoding uint16 = 1 << 11 // UTF-8 name/comment (EFS)
)

// Extra-field header IDs recognised by the ExtraField codec.
const (
	ExtraZip64             uint16 = 0x0001
	ExtraExtendedTimestamp uint16 = 0x5455
	ExtraInfoZipUnix       uint16 = 0x7855
	ExtraNTFS              uint16 = 0x000A
	ExtraOldUnix           uint16 = 0x5855
)

// MaxTrailingSearch bounds the backward scan for the End Of Central
// Directory record: a 22-byte fixed EOCD plus up to a 65535-byte comment.
const MaxTrailingSearch = 22 + 65535
