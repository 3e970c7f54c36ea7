package zipcore

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInputStreamReadsSeekableArchive(t *testing.T) {
	data, err := WriteBuffer(DefaultOptions(), func(s *OutputStream) error {
		for _, pair := range [][2]string{{"a.txt", "alpha"}, {"dir/b.txt", "bravo bravo"}} {
			e, err := NewBufferEntry(pair[0], []byte(pair[1]))
			if err != nil {
				return err
			}
			if err := s.PutNextEntry(e); err != nil {
				return err
			}
			if _, err := s.Write([]byte(pair[1])); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	in := NewInputStream(bytes.NewReader(data), DefaultOptions())

	e1, err := in.GetNextEntry()
	require.NoError(t, err)
	require.Equal(t, "a.txt", e1.Name())
	require.False(t, e1.Incomplete())
	got, err := io.ReadAll(in)
	require.NoError(t, err)
	require.Equal(t, "alpha", string(got))

	e2, err := in.GetNextEntry()
	require.NoError(t, err)
	require.Equal(t, "dir/b.txt", e2.Name())
	got2, err := io.ReadAll(in)
	require.NoError(t, err)
	require.Equal(t, "bravo bravo", string(got2))

	_, err = in.GetNextEntry()
	require.ErrorIs(t, err, io.EOF)
}

func TestInputStreamReadsNonSeekableArchive(t *testing.T) {
	var pw pipeWriter
	stream := NewOutputStream(&pw, DefaultOptions())

	e, err := NewBufferEntry("x.txt", []byte("streamed content"))
	require.NoError(t, err)
	require.NoError(t, stream.PutNextEntry(e))
	require.True(t, e.Incomplete())
	_, err = stream.Write([]byte("streamed content"))
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	in := NewInputStream(bytes.NewReader(pw.buf), DefaultOptions())
	got, err := in.GetNextEntry()
	require.NoError(t, err)
	require.Equal(t, "x.txt", got.Name())
	require.True(t, got.Incomplete())

	content, err := io.ReadAll(in)
	require.NoError(t, err)
	require.Equal(t, "streamed content", string(content))
	require.Equal(t, uint64(len("streamed content")), got.Size())
}

func TestInputStreamDetectsCRCMismatch(t *testing.T) {
	data, err := WriteBuffer(DefaultOptions(), func(s *OutputStream) error {
		e, err := NewBufferEntry("x.txt", []byte("original"))
		if err != nil {
			return err
		}
		if err := s.PutNextEntry(e); err != nil {
			return err
		}
		_, err = s.Write([]byte("original"))
		return err
	})
	require.NoError(t, err)

	// Flip a byte inside the compressed payload, after the local header.
	corrupted := append([]byte(nil), data...)
	corrupted[40] ^= 0xFF

	in := NewInputStream(bytes.NewReader(corrupted), DefaultOptions())
	_, err = in.GetNextEntry()
	require.NoError(t, err)
	_, err = io.ReadAll(in)
	require.Error(t, err)
}

func TestInputStreamReadWithNoEntryOpenFails(t *testing.T) {
	in := NewInputStream(bytes.NewReader(nil), DefaultOptions())
	buf := make([]byte, 4)
	_, err := in.Read(buf)
	require.ErrorIs(t, err, ErrIO)
}
