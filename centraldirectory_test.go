package zipcore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSet(t *testing.T, names ...string) *EntrySet {
	t.Helper()
	set := NewEntrySet()
	for i, n := range names {
		e := mustEntry(t, n)
		e.crc = uint32(i + 1)
		e.size = uint64(10 * (i + 1))
		e.compressedSize = uint64(5 * (i + 1))
		e.localHeaderOffset = uint64(100 * i)
		require.NoError(t, set.Insert(e))
	}
	return set
}

func TestCentralDirectoryRoundTrip(t *testing.T) {
	set := buildSet(t, "a.txt", "dir/b.txt", "c.txt")

	var buf bytes.Buffer
	require.NoError(t, WriteCentralDirectory(&buf, set, 0, "archive comment", false))

	got, loc, err := ReadCentralDirectory(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Equal(t, 3, loc.Entries)
	require.Equal(t, "archive comment", loc.Comment)
	require.True(t, set.Equal(got))
}

func TestCentralDirectoryForcedZip64RoundTrip(t *testing.T) {
	set := buildSet(t, "a.txt", "b.txt")

	var buf bytes.Buffer
	require.NoError(t, WriteCentralDirectory(&buf, set, 0, "", true))

	got, loc, err := ReadCentralDirectory(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Equal(t, 2, loc.Entries)
	require.True(t, set.Equal(got))
}

func TestCentralDirectoryOverflowOffsetForcesZip64(t *testing.T) {
	set := NewEntrySet()
	e := mustEntry(t, "big.bin")
	e.crc = 1
	e.size = 1
	e.compressedSize = 1
	e.localHeaderOffset = uint64(1) << 33
	require.NoError(t, set.Insert(e))

	var buf bytes.Buffer
	require.NoError(t, WriteCentralDirectory(&buf, set, 0, "", false))

	got, _, err := ReadCentralDirectory(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	readBack, err := got.FindEntry("big.bin")
	require.NoError(t, err)
	require.Equal(t, e.localHeaderOffset, readBack.LocalHeaderOffset())
}

func TestCentralDirectoryEmpty(t *testing.T) {
	set := NewEntrySet()

	var buf bytes.Buffer
	require.NoError(t, WriteCentralDirectory(&buf, set, 0, "", false))

	got, loc, err := ReadCentralDirectory(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Equal(t, 0, loc.Entries)
	require.Equal(t, 0, got.Len())
}
