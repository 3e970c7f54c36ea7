package zipcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustEntry(t *testing.T, name string) *Entry {
	t.Helper()
	e, err := NewEntry(name)
	require.NoError(t, err)
	return e
}

func TestEntrySetInsertionOrder(t *testing.T) {
	s := NewEntrySet()
	names := []string{"c.txt", "a.txt", "b.txt"}
	for _, n := range names {
		require.NoError(t, s.Insert(mustEntry(t, n)))
	}

	got := s.Entries()
	require.Len(t, got, 3)
	for i, e := range got {
		require.Equal(t, names[i], e.Name())
	}
}

func TestEntrySetDuplicateInsertFails(t *testing.T) {
	s := NewEntrySet()
	require.NoError(t, s.Insert(mustEntry(t, "a.txt")))
	err := s.Insert(mustEntry(t, "a.txt"))
	require.ErrorIs(t, err, ErrEntryExists)
}

func TestEntrySetDeleteReindexes(t *testing.T) {
	s := NewEntrySet()
	require.NoError(t, s.Insert(mustEntry(t, "a.txt")))
	require.NoError(t, s.Insert(mustEntry(t, "b.txt")))
	require.NoError(t, s.Insert(mustEntry(t, "c.txt")))

	s.Delete("b.txt")
	require.False(t, s.Include("b.txt"))
	e, err := s.FindEntry("c.txt")
	require.NoError(t, err)
	require.Equal(t, "c.txt", e.Name())
}

func TestEntrySetFindEntryNotFound(t *testing.T) {
	s := NewEntrySet()
	_, err := s.FindEntry("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEntrySetTrailingSlashSignificant(t *testing.T) {
	s := NewEntrySet()
	require.NoError(t, s.Insert(mustEntry(t, "a")))
	file, err := NewDirectoryEntry("a")
	require.NoError(t, err)
	require.NoError(t, s.Insert(file))

	require.True(t, s.Include("a"))
	require.True(t, s.Include("a/"))
}

func TestEntrySetEqual(t *testing.T) {
	a := NewEntrySet()
	b := NewEntrySet()
	e1 := mustEntry(t, "x.txt")
	e1.crc = 1
	e2, err := NewEntry("x.txt")
	require.NoError(t, err)
	e2.crc = 1

	require.NoError(t, a.Insert(e1))
	require.NoError(t, b.Insert(e2))
	require.True(t, a.Equal(b))

	e2.crc = 2
	require.False(t, a.Equal(b))
}

func TestEntrySetGlobPlain(t *testing.T) {
	s := NewEntrySet()
	require.NoError(t, s.Insert(mustEntry(t, "error.log")))
	require.NoError(t, s.Insert(mustEntry(t, "notes.txt")))

	matches, err := s.Glob("*.log")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "error.log", matches[0].Name())
}

func TestEntrySetGlobDoubleStarSpansSeparators(t *testing.T) {
	s := NewEntrySet()
	require.NoError(t, s.Insert(mustEntry(t, "error.log")))
	require.NoError(t, s.Insert(mustEntry(t, "var/logs/access.log")))
	require.NoError(t, s.Insert(mustEntry(t, "var/logs/deep/trace.log")))
	require.NoError(t, s.Insert(mustEntry(t, "var/data.json")))

	matches, err := s.Glob("**/*.log")
	require.NoError(t, err)
	var names []string
	for _, m := range matches {
		names = append(names, m.Name())
	}
	require.ElementsMatch(t, []string{"error.log", "var/logs/access.log", "var/logs/deep/trace.log"}, names)
}

func TestEntrySetDup(t *testing.T) {
	s := NewEntrySet()
	require.NoError(t, s.Insert(mustEntry(t, "a.txt")))

	dup := s.Dup()
	require.True(t, s.Equal(dup))
	require.NoError(t, dup.Insert(mustEntry(t, "b.txt")))
	require.False(t, s.Equal(dup))
}
