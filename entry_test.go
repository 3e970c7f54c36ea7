package zipcore

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewEntryRejectsLeadingSlash(t *testing.T) {
	_, err := NewEntry("/etc/passwd")
	require.ErrorIs(t, err, ErrEntryName)
}

func TestNewEntryRejectsEmptyName(t *testing.T) {
	_, err := NewEntry("")
	require.ErrorIs(t, err, ErrEntryName)
}

func TestFileXorDirectory(t *testing.T) {
	f, err := NewEntry("a/b.txt")
	require.NoError(t, err)
	require.True(t, f.File())
	require.False(t, f.Directory())

	d, err := NewDirectoryEntry("a/b")
	require.NoError(t, err)
	require.True(t, d.Directory())
	require.False(t, d.File())
}

func TestParent(t *testing.T) {
	cases := []struct {
		name   string
		parent string
		ok     bool
	}{
		{"aa", "", false},
		{"aa/", "", false},
		{"aa/bb", "aa/", true},
		{"aa/bb/", "aa/", true},
		{"aa/bb/cc", "aa/bb/", true},
	}
	for _, c := range cases {
		e := &Entry{name: c.name}
		parent, ok := e.Parent()
		require.Equal(t, c.ok, ok, c.name)
		if ok {
			require.Equal(t, c.parent, parent, c.name)
		}
	}
}

func TestEncryptedIncompleteFlags(t *testing.T) {
	e := &Entry{}
	require.False(t, e.Encrypted())
	require.False(t, e.Incomplete())

	e.gpFlags |= 1 << 0
	require.True(t, e.Encrypted())

	e.gpFlags |= 1 << 3
	require.True(t, e.Incomplete())
}

func TestSortEntriesLexicographic(t *testing.T) {
	names := []string{"5", "1", "3", "4", "0", "2"}
	entries := make([]*Entry, len(names))
	for i, n := range names {
		e, err := NewEntry(n)
		require.NoError(t, err)
		entries[i] = e
	}

	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Compare(entries[j]) > 0; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}

	for i, e := range entries {
		require.Equal(t, []string{"0", "1", "2", "3", "4", "5"}[i], e.Name())
	}
}

func TestCompressionLevelFlagBits(t *testing.T) {
	require.EqualValues(t, 0x0006, compressionLevelFlagBits(1))
	require.EqualValues(t, 0x0004, compressionLevelFlagBits(2))
	require.EqualValues(t, 0x0002, compressionLevelFlagBits(8))
	require.EqualValues(t, 0x0002, compressionLevelFlagBits(9))
	require.EqualValues(t, 0x0000, compressionLevelFlagBits(-1))
	require.EqualValues(t, 0x0000, compressionLevelFlagBits(0))
	require.EqualValues(t, 0x0000, compressionLevelFlagBits(5))
}

func TestEntryEqualityIgnoresCommentAndTime(t *testing.T) {
	a, err := NewEntry("x.txt")
	require.NoError(t, err)
	a.crc = 42
	a.size = 10
	a.compressedSize = 10
	a.comment = "first"
	a.time = time.Unix(1000, 0)

	b, err := NewEntry("x.txt")
	require.NoError(t, err)
	b.crc = 42
	b.size = 10
	b.compressedSize = 10
	b.comment = "second"
	b.time = time.Unix(2000, 0)

	require.True(t, a.Equal(b))

	b.crc = 43
	require.False(t, a.Equal(b))
}

func TestLocalHeaderRoundTrip(t *testing.T) {
	e, err := NewBufferEntry("hello.txt", []byte("hello world"))
	require.NoError(t, err)
	e.crc = 0xdeadbeef
	e.compressedSize = 11

	var buf bytes.Buffer
	require.NoError(t, e.WriteLocalHeader(&buf))

	// Skip the 4-byte signature the wire helper writes but ReadLocalHeader
	// expects the caller to have already consumed.
	got := &Entry{}
	require.NoError(t, got.ReadLocalHeader(bytes.NewReader(buf.Bytes()[4:])))
	require.Equal(t, e.name, got.name)
	require.Equal(t, e.crc, got.crc)
	require.Equal(t, e.compressedSize, got.compressedSize)
}

func TestCentralDirEntryRoundTripWithComment(t *testing.T) {
	e, err := NewEntry("dir/file.txt")
	require.NoError(t, err)
	e.comment = "a comment"
	e.crc = 7
	e.size = 100
	e.compressedSize = 50

	var buf bytes.Buffer
	require.NoError(t, e.WriteCentralDirEntry(&buf))

	got := &Entry{}
	require.NoError(t, got.ReadCentralDirEntry(bytes.NewReader(buf.Bytes()[4:])))
	require.Equal(t, e.name, got.name)
	require.Equal(t, e.comment, got.comment)
	require.Equal(t, e.crc, got.crc)
	require.Equal(t, e.size, got.size)
	require.Equal(t, e.compressedSize, got.compressedSize)
}

func TestRequiresZip64PromotesHeaderFields(t *testing.T) {
	e, err := NewEntry("big.bin")
	require.NoError(t, err)
	e.size = uint64(1) << 33
	e.compressedSize = uint64(1) << 32
	require.True(t, e.RequiresZip64())

	var buf bytes.Buffer
	require.NoError(t, e.WriteCentralDirEntry(&buf))

	got := &Entry{}
	require.NoError(t, got.ReadCentralDirEntry(bytes.NewReader(buf.Bytes()[4:])))
	require.Equal(t, e.size, got.size)
	require.Equal(t, e.compressedSize, got.compressedSize)
	require.True(t, got.RequiresZip64())
}
