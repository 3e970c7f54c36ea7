package zipcore

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeflaterInflaterRoundTripStored(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewDeflater(MethodStored, &buf, DeflateNormal)
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog")
	_, err = d.Write(payload)
	require.NoError(t, err)

	crc, uncompressed, compressed, err := d.Finish()
	require.NoError(t, err)
	require.EqualValues(t, len(payload), uncompressed)
	require.EqualValues(t, len(payload), compressed)

	inf, err := NewInflater(MethodStored, &buf, crc, uncompressed)
	require.NoError(t, err)
	got, err := readAllInflater(inf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDeflaterInflaterRoundTripDeflated(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewDeflater(MethodDeflated, &buf, DeflateMaximum)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("compressible data "), 256)
	_, err = d.Write(payload)
	require.NoError(t, err)

	crc, uncompressed, compressed, err := d.Finish()
	require.NoError(t, err)
	require.Less(t, compressed, uncompressed)

	inf, err := NewInflater(MethodDeflated, &buf, crc, uncompressed)
	require.NoError(t, err)
	got, err := readAllInflater(inf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.NoError(t, inf.Close())
}

func TestInflaterDetectsCRCMismatch(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewDeflater(MethodStored, &buf, DeflateNormal)
	require.NoError(t, err)
	_, err = d.Write([]byte("hello"))
	require.NoError(t, err)
	_, _, size, err := d.Finish()
	require.NoError(t, err)

	inf, err := NewInflater(MethodStored, &buf, 0xdeadbeef, size)
	require.NoError(t, err)
	_, err = readAllInflater(inf)
	require.ErrorIs(t, err, ErrDecompression)
}

func TestNewDeflaterRejectsUnsupportedMethod(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewDeflater(99, &buf, DeflateNormal)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestWriteAfterFinishFails(t *testing.T) {
	var buf bytes.Buffer
	d, err := NewDeflater(MethodStored, &buf, DeflateNormal)
	require.NoError(t, err)
	_, _, _, err = d.Finish()
	require.NoError(t, err)

	_, err = d.Write([]byte("too late"))
	require.ErrorIs(t, err, ErrIO)
}

func readAllInflater(inf *Inflater) ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, 16)
	for {
		n, err := inf.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out.Bytes(), nil
			}
			return out.Bytes(), err
		}
	}
}
