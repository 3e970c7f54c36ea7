package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrSignatureNotFound is returned by ScanForSignature when a 4-byte
// signature cannot be located within the searched window.
var ErrSignatureNotFound = errors.New("wire: signature not found")

// PutUint16/PutUint32/PutUint64 and GetUint16/GetUint32/GetUint64 are thin
// little-endian aliases kept here so every record encoder/decoder in this
// package reads the same way; ZIP is defined entirely in little-endian.
func PutUint16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func PutUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func PutUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func GetUint16(b []byte) uint16    { return binary.LittleEndian.Uint16(b) }
func GetUint32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }
func GetUint64(b []byte) uint64    { return binary.LittleEndian.Uint64(b) }

// ScanForSignature searches backward from the end of a stream of the given
// total size for the occurrence of sig nearest EOF within the trailing
// maxSearch bytes, returning the absolute offset of the signature's first
// byte. It is used to locate the End Of Central Directory record, which is
// followed by a variable-length (0..65535 byte) archive comment that may
// itself coincidentally contain the signature bytes earlier in the search
// region, so windows are checked nearest-EOF first and the first match
// found wins.
func ScanForSignature(src io.ReaderAt, size int64, sig uint32, maxSearch int64) (int64, error) {
	if size < 4 {
		return 0, ErrSignatureNotFound
	}

	searchLimit := min(maxSearch, size)
	regionStart := size - searchLimit
	const bufSize = 1024
	buf := make([]byte, bufSize)

	for windowEnd := size; windowEnd > regionStart; {
		readSize := min(int64(bufSize), windowEnd-regionStart)
		readPos := windowEnd - readSize

		n, err := src.ReadAt(buf[:readSize], readPos)
		if err != nil && err != io.EOF {
			return 0, err
		}
		if int64(n) != readSize {
			return 0, ErrSignatureNotFound
		}

		chunk := buf[:n]
		for p := n - 4; p >= 0; p-- {
			if GetUint32(chunk[p:p+4]) == sig {
				return readPos + int64(p), nil
			}
		}

		if readPos <= regionStart {
			break
		}
		// Overlap by 3 bytes so a signature straddling the window boundary
		// is not missed on the next (farther-back) iteration.
		windowEnd = readPos + 3
	}

	return 0, ErrSignatureNotFound
}

// ReadSignature reads the next 4 bytes from src and reports whether they
// equal sig, consuming the bytes regardless of the outcome.
func ReadSignature(src io.Reader, sig uint32) (bool, error) {
	var buf [4]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return false, err
	}
	return GetUint32(buf[:]) == sig, nil
}

// PeekSignature reads the next 4 bytes from an io.ReaderAt at the given
// offset without affecting any other cursor.
func PeekSignature(src io.ReaderAt, offset int64) (uint32, error) {
	var buf [4]byte
	if _, err := src.ReadAt(buf[:], offset); err != nil {
		return 0, err
	}
	return GetUint32(buf[:]), nil
}
