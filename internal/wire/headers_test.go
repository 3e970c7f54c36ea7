package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalFileHeaderRoundTrip(t *testing.T) {
	h := LocalFileHeader{
		VersionNeededToExtract: 20,
		GeneralPurposeBitFlag:  FlagLanguageEncoding,
		CompressionMethod:      Deflated,
		LastModFileTime:        0x1234,
		LastModFileDate:        0x5678,
		CRC32:                  0xdeadbeef,
		CompressedSize:         100,
		UncompressedSize:       200,
		Filename:               "hello.txt",
		FilenameLength:         uint16(len("hello.txt")),
	}

	encoded := h.Encode()
	require.Equal(t, uint32(LocalFileHeaderSignature), GetUint32(encoded[0:4]))

	buf := bytes.NewReader(encoded[4:])
	got, err := ReadLocalFileHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h.VersionNeededToExtract, got.VersionNeededToExtract)
	require.Equal(t, h.CompressionMethod, got.CompressionMethod)
	require.Equal(t, h.CRC32, got.CRC32)
	require.Equal(t, h.CompressedSize, got.CompressedSize)
	require.Equal(t, h.UncompressedSize, got.UncompressedSize)
	require.Equal(t, h.Filename, got.Filename)
}

func TestCentralDirectoryHeaderRoundTrip(t *testing.T) {
	d := CentralDirectoryHeader{
		VersionMadeBy:          0x0314,
		VersionNeededToExtract: 20,
		CompressionMethod:      Stored,
		CRC32:                  1,
		CompressedSize:         10,
		UncompressedSize:       10,
		Filename:               "dir/",
		FilenameLength:         4,
		Comment:                "a comment",
		FileCommentLength:      uint16(len("a comment")),
	}

	encoded := d.Encode()
	buf := bytes.NewReader(encoded[4:])
	got, err := ReadCentralDirectoryHeader(buf)
	require.NoError(t, err)
	require.Equal(t, d.Filename, got.Filename)
	require.Equal(t, d.Comment, got.Comment)
	require.Equal(t, d.CRC32, got.CRC32)
}

func TestEndOfCentralDirRoundTrip(t *testing.T) {
	encoded := EncodeEndOfCentralDir(3, 120, 500, "archive comment")
	require.Equal(t, uint32(EndOfCentralDirSignature), GetUint32(encoded[0:4]))

	buf := bytes.NewReader(encoded[4:])
	got, err := ReadEndOfCentralDir(buf)
	require.NoError(t, err)
	require.EqualValues(t, 3, got.TotalNumberOfEntries)
	require.EqualValues(t, 120, got.CentralDirSize)
	require.EqualValues(t, 500, got.CentralDirOffset)
	require.Equal(t, "archive comment", got.Comment)
}

func TestZip64EndOfCentralDirRoundTrip(t *testing.T) {
	encoded := EncodeZip64EndOfCentralDir(70000, 1<<33, 1<<34)
	buf := bytes.NewReader(encoded[4:])
	got, err := ReadZip64EndOfCentralDir(buf)
	require.NoError(t, err)
	require.EqualValues(t, 70000, got.TotalNumberOfEntries)
	require.EqualValues(t, 1<<33, got.CentralDirSize)
	require.EqualValues(t, 1<<34, got.CentralDirOffset)
}

func TestZip64LocatorRoundTrip(t *testing.T) {
	encoded := EncodeZip64EndOfCentralDirLocator(123456789)
	buf := bytes.NewReader(encoded[4:])
	got, err := ReadZip64EndOfCentralDirLocator(buf)
	require.NoError(t, err)
	require.EqualValues(t, 123456789, got.Zip64EndOfCentralDirOffset)
	require.EqualValues(t, 1, got.TotalNumberOfDisks)
}

func TestDataDescriptorRoundTrip(t *testing.T) {
	d := DataDescriptor{CRC32: 0xabcd1234, CompressedSize: 42, UncompressedSize: 99}
	encoded := d.Encode()
	require.Len(t, encoded, 16)

	got, err := ReadDataDescriptor(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, d.CRC32, got.CRC32)
	require.Equal(t, d.CompressedSize, got.CompressedSize)
	require.Equal(t, d.UncompressedSize, got.UncompressedSize)

	// Without the optional leading signature.
	noSig := encoded[4:]
	got2, err := ReadDataDescriptor(bytes.NewReader(noSig))
	require.NoError(t, err)
	require.Equal(t, d.CRC32, got2.CRC32)
}

func TestScanForSignature(t *testing.T) {
	data := append([]byte("not a zip record, just padding"), make([]byte, 4)...)
	PutUint32(data[len(data)-4:], EndOfCentralDirSignature)
	data = append(data, []byte("trailing comment")...)

	offset, err := ScanForSignature(bytes.NewReader(data), int64(len(data)), EndOfCentralDirSignature, MaxTrailingSearch)
	require.NoError(t, err)
	require.EqualValues(t, len("not a zip record, just padding"), offset)
}

func TestScanForSignatureNotFound(t *testing.T) {
	data := []byte("definitely not a zip archive at all")
	_, err := ScanForSignature(bytes.NewReader(data), int64(len(data)), EndOfCentralDirSignature, MaxTrailingSearch)
	require.ErrorIs(t, err, ErrSignatureNotFound)
}

// TestScanForSignaturePrefersOccurrenceNearestEOF plants a spurious
// signature far from the end of the stream and the real one near EOF,
// separated by more than the scanner's internal 1024-byte window, and
// verifies the real (nearest-EOF) one is returned rather than the
// spurious earlier occurrence.
func TestScanForSignaturePrefersOccurrenceNearestEOF(t *testing.T) {
	data := make([]byte, 3000)
	for i := range data {
		data[i] = 'x'
	}

	spuriousOffset := 10
	PutUint32(data[spuriousOffset:], EndOfCentralDirSignature)

	realOffset := 2800
	PutUint32(data[realOffset:], EndOfCentralDirSignature)
	data = append(data[:realOffset+4], []byte("trailing comment")...)

	offset, err := ScanForSignature(bytes.NewReader(data), int64(len(data)), EndOfCentralDirSignature, MaxTrailingSearch)
	require.NoError(t, err)
	require.EqualValues(t, realOffset, offset)
}
