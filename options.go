// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

// ConflictPolicy decides what Add/AddStored/Rename do when the destination
// name is already occupied. It receives the existing entry and reports
// whether the new one should replace it; declining (false) surfaces
// ErrEntryExists to the caller.
type ConflictPolicy func(existing *Entry) (replace bool)

// RejectOnConflict is the library-default ConflictPolicy: it never
// replaces an existing entry, so Add/Rename into an occupied name always
// fails with ErrEntryExists.
func RejectOnConflict(existing *Entry) bool { return false }

// ReplaceOnConflict is a ConflictPolicy that always replaces the existing
// entry with the incoming one.
func ReplaceOnConflict(existing *Entry) bool { return true }

// Options configures an Archive's behavior across its lifetime: the
// restoration semantics applied on extract, the default compression level
// for newly added entries, and a handful of archive-wide knobs. It
// replaces the teacher's ZipConfig/FileConfig pair with a single record
// threaded explicitly through Open/OpenBuffer and the stream
// constructors, rather than a package-level
// mutable Setup object.
//
// The zero value is not ready to use; call DefaultOptions to obtain a
// library-default instance. Options is a plain value type: copy it,
// don't share a pointer, if two Archives need independently-tunable
// settings.
type Options struct {
	// RestoreOwnership, when true, applies an extracted entry's
	// unix_uid/unix_gid to the filesystem object written during extract.
	// Default false: most extraction contexts run unprivileged and
	// cannot chown anyway.
	RestoreOwnership bool

	// RestorePermissions, when true, applies an extracted entry's
	// unix_perms to the filesystem object written during extract;
	// entries with no recorded Unix permissions keep the mode the
	// filesystem gives them. Default true.
	RestorePermissions bool

	// RestoreTimes, when true, applies an extracted entry's recorded
	// mtime to the filesystem object written during extract. Default
	// true.
	RestoreTimes bool

	// CompressionLevel is the default level used for new DEFLATED
	// entries that don't set their own. -1 selects the codec's own
	// default (DeflateNormal); 0 is equivalent to STORED; 1-9 follow
	// the usual speed/size trade-off.
	CompressionLevel int

	// WriteZip64Support, when true, forces every newly written entry
	// and the central directory itself to carry ZIP64 records
	// pre-emptively, even when none of their fields overflow 32 bits.
	// When false (the default), ZIP64 is only emitted when a 32-bit
	// field would actually overflow.
	WriteZip64Support bool

	// UnicodeNames records the archive's preference between UTF-8 and
	// CP437 for entry names. zipcore always treats Go strings as UTF-8
	// and sets the general-purpose UTF-8 flag (bit 11) whenever a name
	// contains a non-ASCII byte; this flag is carried for forward
	// compatibility with a future CP437/0x7075 path and currently gates
	// nothing.
	UnicodeNames bool

	// ValidateEntrySizes, when true, makes InputStream verify that the
	// number of bytes actually read from an entry matches its declared
	// size, in addition to the CRC-32 check that always runs.
	ValidateEntrySizes bool

	// OnConflict decides whether Add/AddStored/Rename may overwrite an
	// occupied destination name. Defaults to RejectOnConflict.
	OnConflict ConflictPolicy
}

// DefaultOptions returns the library's default Options: conservative
// extraction (permissions and times restored, ownership left alone),
// the codec's own default compression level, no pre-emptive ZIP64, and
// reject-on-conflict semantics. The returned value is freshly allocated
// on every call and never shared, so callers can freely mutate their
// copy.
func DefaultOptions() Options {
	return Options{
		RestoreOwnership:   false,
		RestorePermissions: true,
		RestoreTimes:       true,
		CompressionLevel:   -1,
		WriteZip64Support:  false,
		UnicodeNames:       false,
		ValidateEntrySizes: false,
		OnConflict:         RejectOnConflict,
	}
}

// conflictPolicy returns o.OnConflict, falling back to RejectOnConflict
// when the Options value was built without one (e.g. a zero Options{}).
func (o Options) conflictPolicy() ConflictPolicy {
	if o.OnConflict == nil {
		return RejectOnConflict
	}
	return o.OnConflict
}
