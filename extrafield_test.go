package zipcore

import (
	"testing"
	"time"

	"github.com/haldane-loop/zipcore/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestExtraFieldOrderPreserved(t *testing.T) {
	ef := NewExtraField()
	ef.Set(0x9999, []byte("unknown"))
	ef.Set(ExtraZip64, []byte{1, 2, 3, 4})
	ef.Set(0x1234, []byte("also unknown"))

	encoded := ef.Encode()
	decoded, err := DecodeExtraField(encoded)
	require.NoError(t, err)

	require.Equal(t, encoded, decoded.Encode())

	got, ok := decoded.Get(0x9999)
	require.True(t, ok)
	require.Equal(t, []byte("unknown"), got)
}

func TestExtraFieldSetReplacesInPlace(t *testing.T) {
	ef := NewExtraField()
	ef.Set(1, []byte("a"))
	ef.Set(2, []byte("b"))
	ef.Set(1, []byte("aa"))

	got, ok := ef.Get(1)
	require.True(t, ok)
	require.Equal(t, []byte("aa"), got)

	// Replacing must not move the record to the end.
	encoded := ef.Encode()
	require.EqualValues(t, 1, wire.GetUint16(encoded[0:2]))
}

func TestExtraFieldDeleteReindexes(t *testing.T) {
	ef := NewExtraField()
	ef.Set(1, []byte("a"))
	ef.Set(2, []byte("b"))
	ef.Set(3, []byte("c"))
	ef.Delete(2)

	require.False(t, ef.Has(2))
	got, ok := ef.Get(3)
	require.True(t, ok)
	require.Equal(t, []byte("c"), got)
}

func TestDecodeExtraFieldTruncated(t *testing.T) {
	_, err := DecodeExtraField([]byte{0x01, 0x00, 0xFF, 0xFF})
	require.ErrorIs(t, err, ErrMalformedArchive)
}

func TestZip64RoundTrip(t *testing.T) {
	u := uint64(1 << 40)
	c := uint64(1 << 35)
	z := Zip64Data{UncompressedSize: &u, CompressedSize: &c}
	payload := EncodeZip64(z)

	got, err := DecodeZip64(payload, true, true, false, false)
	require.NoError(t, err)
	require.Equal(t, u, *got.UncompressedSize)
	require.Equal(t, c, *got.CompressedSize)
}

func TestExtendedTimestampRoundTrip(t *testing.T) {
	mtime := time.Unix(1700000000, 0).UTC()
	ts := ExtendedTimestamp{Mtime: mtime, HasMtime: true}
	payload := ts.Encode()

	got, err := DecodeExtendedTimestamp(payload)
	require.NoError(t, err)
	require.True(t, got.HasMtime)
	require.False(t, got.HasAtime)
	require.Equal(t, mtime.Unix(), got.Mtime.Unix())
}

func TestUnixOwnerRoundTrip(t *testing.T) {
	u := UnixOwner{UID: 1000, GID: 1000}
	payload := u.Encode()

	got, err := DecodeUnixOwner(payload)
	require.NoError(t, err)
	require.Equal(t, u, got)
}

func TestNTFSTimesRoundTrip(t *testing.T) {
	n := NTFSTimes{
		Mtime: time.Unix(1700000000, 0).UTC(),
		Atime: time.Unix(1700000001, 0).UTC(),
		Ctime: time.Unix(1700000002, 0).UTC(),
	}
	payload := n.Encode()

	got, err := DecodeNTFSTimes(payload)
	require.NoError(t, err)
	require.Equal(t, n.Mtime.Unix(), got.Mtime.Unix())
	require.Equal(t, n.Atime.Unix(), got.Atime.Unix())
	require.Equal(t, n.Ctime.Unix(), got.Ctime.Unix())
}
