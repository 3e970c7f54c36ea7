// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import "errors"

// Sentinel errors for the distinct kinds a caller can match with
// errors.Is. All I/O and codec failures surface as one of these,
// optionally wrapped with call-site detail via fmt.Errorf("%w: ...", ...).
var (
	// ErrEntryName is returned when an entry name violates a naming
	// constraint (a leading "/", an empty name, or a name exceeding
	// 65535 bytes).
	ErrEntryName = errors.New("zipcore: invalid entry name")

	// ErrEntryExists is returned by Add/Rename when the destination name
	// is already occupied and the caller's conflict predicate declines
	// to replace it.
	ErrEntryExists = errors.New("zipcore: entry already exists")

	// ErrMalformedArchive is returned for any bad signature, size
	// mismatch, truncated record, or bogus extra field encountered while
	// reading an archive.
	ErrMalformedArchive = errors.New("zipcore: malformed archive")

	// ErrDecompression is returned when a CRC-32 or declared-size check
	// fails at the end of an entry's compressed stream.
	ErrDecompression = errors.New("zipcore: decompression error")

	// ErrIO is returned for read/write operations performed after a
	// stream or archive has been closed, or when the underlying sink or
	// source fails.
	ErrIO = errors.New("zipcore: io error")

	// ErrUnsupported is returned for an encrypted entry (this library
	// recognises but never decodes encryption) or an unrecognised
	// compression method.
	ErrUnsupported = errors.New("zipcore: unsupported")

	// ErrArgument is returned when calling conventions are violated, such
	// as requesting an output stream for a directory entry.
	ErrArgument = errors.New("zipcore: invalid argument")

	// ErrNotFound is returned when an entry lookup by name fails.
	ErrNotFound = errors.New("zipcore: entry not found")
)
