// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import (
	"fmt"
	"time"

	"github.com/haldane-loop/zipcore/internal/wire"
)

// Extra-field header IDs recognised by Encode/Decode. Anything else is
// preserved as opaque bytes and round-tripped verbatim.
const (
	ExtraZip64             = wire.ExtraZip64
	ExtraExtendedTimestamp = wire.ExtraExtendedTimestamp
	ExtraInfoZipUnix       = wire.ExtraInfoZipUnix
	ExtraNTFS              = wire.ExtraNTFS
	ExtraOldUnix           = wire.ExtraOldUnix
)

// extraRecord is one (id, payload) pair in encounter/append order.
type extraRecord struct {
	id      uint16
	payload []byte
}

// ExtraField is an ordered id -> payload map, matching the concatenated
// (id, length, payload) records that follow an entry's filename in both
// the local and central directory headers. Order is preserved across
// Decode/Encode so an unrecognised record a reader doesn't understand
// still round-trips byte-for-byte relative to its neighbours.
type ExtraField struct {
	records []extraRecord
	index   map[uint16]int // id -> position in records, for O(1) lookup/replace
}

// NewExtraField returns an empty ExtraField.
func NewExtraField() *ExtraField {
	return &ExtraField{index: make(map[uint16]int)}
}

// Set inserts or replaces the payload for id, preserving its original
// position on replace and appending on first insert.
func (ef *ExtraField) Set(id uint16, payload []byte) {
	if ef.index == nil {
		ef.index = make(map[uint16]int)
	}
	if pos, ok := ef.index[id]; ok {
		ef.records[pos].payload = payload
		return
	}
	ef.index[id] = len(ef.records)
	ef.records = append(ef.records, extraRecord{id: id, payload: payload})
}

// Get returns the payload for id and whether it was present.
func (ef *ExtraField) Get(id uint16) ([]byte, bool) {
	pos, ok := ef.index[id]
	if !ok {
		return nil, false
	}
	return ef.records[pos].payload, true
}

// Has reports whether id is present.
func (ef *ExtraField) Has(id uint16) bool {
	_, ok := ef.index[id]
	return ok
}

// Delete removes id, if present.
func (ef *ExtraField) Delete(id uint16) {
	pos, ok := ef.index[id]
	if !ok {
		return
	}
	ef.records = append(ef.records[:pos], ef.records[pos+1:]...)
	delete(ef.index, id)
	for i := pos; i < len(ef.records); i++ {
		ef.index[ef.records[i].id] = i
	}
}

// Len returns the total encoded length of every record, (id, length,
// payload) inclusive — the value the entry's extra-field-length header
// field must carry.
func (ef *ExtraField) Len() int {
	n := 0
	for _, r := range ef.records {
		n += 4 + len(r.payload)
	}
	return n
}

// Encode concatenates every record as (id uint16, length uint16, payload)
// in the field's current order.
func (ef *ExtraField) Encode() []byte {
	buf := make([]byte, 0, ef.Len())
	for _, r := range ef.records {
		var head [4]byte
		wire.PutUint16(head[0:2], r.id)
		wire.PutUint16(head[2:4], uint16(len(r.payload)))
		buf = append(buf, head[:]...)
		buf = append(buf, r.payload...)
	}
	return buf
}

// DecodeExtraField parses a concatenated extra-field blob, preserving
// encounter order. It stops at the declared length of each record; a
// record whose declared length runs past the end of the blob is a
// malformed archive.
func DecodeExtraField(data []byte) (*ExtraField, error) {
	ef := NewExtraField()
	offset := 0
	for offset < len(data) {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated extra field header", ErrMalformedArchive)
		}
		id := wire.GetUint16(data[offset : offset+2])
		size := int(wire.GetUint16(data[offset+2 : offset+4]))
		offset += 4
		if offset+size > len(data) {
			return nil, fmt.Errorf("%w: extra field record overruns its declared length", ErrMalformedArchive)
		}
		payload := make([]byte, size)
		copy(payload, data[offset:offset+size])
		ef.Set(id, payload)
		offset += size
	}
	return ef, nil
}

// --- ZIP64 (0x0001) ---

// Zip64Data holds the subset of the four possible 64-bit values a ZIP64
// extra field carries. Per APPNOTE, only the fields whose 32-bit header
// slot was set to 0xFFFFFFFF are present, in this fixed order:
// uncompressed size, compressed size, local header offset, disk number.
type Zip64Data struct {
	UncompressedSize  *uint64
	CompressedSize    *uint64
	LocalHeaderOffset *uint64
	DiskNumber        *uint32
}

// EncodeZip64 renders only the present fields, in APPNOTE order.
func EncodeZip64(z Zip64Data) []byte {
	var buf []byte
	if z.UncompressedSize != nil {
		var b [8]byte
		wire.PutUint64(b[:], *z.UncompressedSize)
		buf = append(buf, b[:]...)
	}
	if z.CompressedSize != nil {
		var b [8]byte
		wire.PutUint64(b[:], *z.CompressedSize)
		buf = append(buf, b[:]...)
	}
	if z.LocalHeaderOffset != nil {
		var b [8]byte
		wire.PutUint64(b[:], *z.LocalHeaderOffset)
		buf = append(buf, b[:]...)
	}
	if z.DiskNumber != nil {
		var b [4]byte
		wire.PutUint32(b[:], *z.DiskNumber)
		buf = append(buf, b[:]...)
	}
	return buf
}

// DecodeZip64 parses a ZIP64 payload, consuming fields in APPNOTE order
// according to which 32-bit header slots the caller reports as overflowed.
func DecodeZip64(payload []byte, wantUncompressed, wantCompressed, wantOffset, wantDisk bool) (Zip64Data, error) {
	var z Zip64Data
	pos := 0
	need := func(n int) error {
		if pos+n > len(payload) {
			return fmt.Errorf("%w: truncated zip64 extra field", ErrMalformedArchive)
		}
		return nil
	}
	if wantUncompressed {
		if err := need(8); err != nil {
			return z, err
		}
		v := wire.GetUint64(payload[pos : pos+8])
		z.UncompressedSize = &v
		pos += 8
	}
	if wantCompressed {
		if err := need(8); err != nil {
			return z, err
		}
		v := wire.GetUint64(payload[pos : pos+8])
		z.CompressedSize = &v
		pos += 8
	}
	if wantOffset {
		if err := need(8); err != nil {
			return z, err
		}
		v := wire.GetUint64(payload[pos : pos+8])
		z.LocalHeaderOffset = &v
		pos += 8
	}
	if wantDisk {
		if err := need(4); err != nil {
			return z, err
		}
		v := wire.GetUint32(payload[pos : pos+4])
		z.DiskNumber = &v
		pos += 4
	}
	return z, nil
}

// --- Extended Timestamp (0x5455) ---

const (
	timestampHasMtime = 1 << 0
	timestampHasAtime = 1 << 1
	timestampHasCtime = 1 << 2
)

// ExtendedTimestamp mirrors the Info-ZIP 0x5455 record: a one-byte
// presence flag followed by up to three 32-bit Unix-epoch seconds values.
type ExtendedTimestamp struct {
	Mtime, Atime, Ctime         time.Time
	HasMtime, HasAtime, HasCtime bool
}

// Encode renders the record. Only present fields are emitted, matching the
// flag byte to the fields actually written.
func (ts ExtendedTimestamp) Encode() []byte {
	var flag byte
	var body []byte
	if ts.HasMtime {
		flag |= timestampHasMtime
		body = appendUnix32(body, ts.Mtime)
	}
	if ts.HasAtime {
		flag |= timestampHasAtime
		body = appendUnix32(body, ts.Atime)
	}
	if ts.HasCtime {
		flag |= timestampHasCtime
		body = appendUnix32(body, ts.Ctime)
	}
	return append([]byte{flag}, body...)
}

func appendUnix32(buf []byte, t time.Time) []byte {
	var b [4]byte
	wire.PutUint32(b[:], uint32(t.Unix()))
	return append(buf, b[:]...)
}

// DecodeExtendedTimestamp parses a 0x5455 payload.
func DecodeExtendedTimestamp(payload []byte) (ExtendedTimestamp, error) {
	if len(payload) < 1 {
		return ExtendedTimestamp{}, fmt.Errorf("%w: empty extended timestamp field", ErrMalformedArchive)
	}
	flag := payload[0]
	var ts ExtendedTimestamp
	pos := 1
	read := func() (time.Time, error) {
		if pos+4 > len(payload) {
			return time.Time{}, fmt.Errorf("%w: truncated extended timestamp field", ErrMalformedArchive)
		}
		sec := int64(int32(wire.GetUint32(payload[pos : pos+4])))
		pos += 4
		return time.Unix(sec, 0).UTC(), nil
	}
	if flag&timestampHasMtime != 0 {
		t, err := read()
		if err != nil {
			return ts, err
		}
		ts.Mtime, ts.HasMtime = t, true
	}
	if flag&timestampHasAtime != 0 {
		t, err := read()
		if err != nil {
			return ts, err
		}
		ts.Atime, ts.HasAtime = t, true
	}
	if flag&timestampHasCtime != 0 {
		t, err := read()
		if err != nil {
			return ts, err
		}
		ts.Ctime, ts.HasCtime = t, true
	}
	return ts, nil
}

// --- Unix UID/GID (0x7855 "IUnix", 0x5855 "OldUnix") ---

// UnixOwner holds a 16-bit UID/GID pair, as carried by both the 0x7855 and
// legacy 0x5855 extra-field records.
type UnixOwner struct {
	UID, GID uint16
}

// Encode renders the 4-byte UID/GID payload shared by both record IDs.
func (u UnixOwner) Encode() []byte {
	buf := make([]byte, 4)
	wire.PutUint16(buf[0:2], u.UID)
	wire.PutUint16(buf[2:4], u.GID)
	return buf
}

// DecodeUnixOwner parses a 0x7855/0x5855 payload.
func DecodeUnixOwner(payload []byte) (UnixOwner, error) {
	if len(payload) < 4 {
		return UnixOwner{}, fmt.Errorf("%w: truncated unix owner field", ErrMalformedArchive)
	}
	return UnixOwner{
		UID: wire.GetUint16(payload[0:2]),
		GID: wire.GetUint16(payload[2:4]),
	}, nil
}

// --- NTFS times (0x000A) ---

const ntfsAttrTag1 = 0x0001

// NTFSTimes mirrors the 0x000A record: a 4-byte reserved prefix followed
// by one or more (tag, size, data) sub-blocks; zipcore only emits and
// reads tag 0x0001, the 64-bit FILETIME mtime/atime/ctime triplet.
type NTFSTimes struct {
	Mtime, Atime, Ctime time.Time
}

// Encode renders the 4-byte reserved field, the tag-1 sub-block header,
// and the three 64-bit Windows FILETIME values.
func (n NTFSTimes) Encode() []byte {
	buf := make([]byte, 4+4+24)
	wire.PutUint16(buf[4:6], ntfsAttrTag1)
	wire.PutUint16(buf[6:8], 24)
	wire.PutUint64(buf[8:16], timeToFiletime(n.Mtime))
	wire.PutUint64(buf[16:24], timeToFiletime(n.Atime))
	wire.PutUint64(buf[24:32], timeToFiletime(n.Ctime))
	return buf
}

// DecodeNTFSTimes parses a 0x000A payload, skipping any sub-block other
// than tag 0x0001.
func DecodeNTFSTimes(payload []byte) (NTFSTimes, error) {
	var n NTFSTimes
	if len(payload) < 4 {
		return n, fmt.Errorf("%w: truncated ntfs extra field", ErrMalformedArchive)
	}
	pos := 4
	for pos+4 <= len(payload) {
		tag := wire.GetUint16(payload[pos : pos+2])
		size := int(wire.GetUint16(payload[pos+2 : pos+4]))
		pos += 4
		if pos+size > len(payload) {
			return n, fmt.Errorf("%w: truncated ntfs sub-block", ErrMalformedArchive)
		}
		if tag == ntfsAttrTag1 && size >= 24 {
			block := payload[pos : pos+24]
			n.Mtime = filetimeToTime(wire.GetUint64(block[0:8]))
			n.Atime = filetimeToTime(wire.GetUint64(block[8:16]))
			n.Ctime = filetimeToTime(wire.GetUint64(block[16:24]))
		}
		pos += size
	}
	return n, nil
}

const filetimeEpochOffset = 116444736000000000 // 100ns ticks, 1601 -> 1970
const filetimeTicksPerSecond = 10000000

func timeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	sec := t.Unix()
	nsec := int64(t.Nanosecond())
	return uint64(sec*filetimeTicksPerSecond+nsec/100) + filetimeEpochOffset
}

func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	if ft < filetimeEpochOffset {
		return time.Time{}
	}
	diff := ft - filetimeEpochOffset
	seconds := int64(diff / filetimeTicksPerSecond)
	nanos := int64(diff%filetimeTicksPerSecond) * 100
	return time.Unix(seconds, nanos).UTC()
}
