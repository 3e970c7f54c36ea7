// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zipcore provides a streaming-first implementation of the ZIP
// archive format: a path-backed Archive with explicit commit semantics,
// a seekable central-directory codec, and a pair of forward-only
// InputStream/OutputStream types for archives that can't be seeked.
//
// # Key properties
//
// 1. Explicit commit: an Archive opened from a path stages every change
// in memory and only touches disk on Commit, which writes a temporary
// file beside the original and renames it into place. An interrupted
// commit leaves the original archive untouched.
//
// 2. Streaming without a seekable sink: OutputStream falls back to a
// trailing Data Descriptor (general-purpose bit 3) whenever its
// destination doesn't implement io.WriteSeeker, so an archive can be
// built directly onto a pipe, a network connection, or any plain
// io.Writer. InputStream mirrors this on read, recognizing the same
// trailing descriptor.
//
// 3. Zip64 is automatic: any entry or central directory whose size,
// compressed size, or offset would overflow 32 bits gets the
// corresponding extra field and EOCD locator without the caller asking
// for it. On a seekable sink the local header is sized when the entry is
// opened, so an entry that grows past 4 GiB without a declared size over
// 4 GiB (or Options.WriteZip64Support) fails in FinalizeCurrentEntry
// with ErrIO.
//
// 4. Unix permissions and symlinks round-trip: permissions of
// Unix-origin entries travel in the external file attributes, and a
// symlink is stored as an entry whose content is its target text.
// Extract restores permissions and times best-effort, writes a symlink
// entry back as a regular file holding that text, and refuses to write
// outside its destination directory ("Zip Slip" protection). Ownership
// (UID/GID) is read from the filesystem by NewPathEntry but is not
// written to the archive, so entries read back from an archive carry
// none.
//
// 5. No encryption: an entry with general-purpose bit 0 set is
// recognized but rejected with ErrUnsupported on both read and write.
// Callers needing encrypted archives should wrap content themselves
// before handing it to an Entry's ContentSource.
//
// # Basic usage
//
// Building a new archive:
//
//	archive, _ := zipcore.Open("output.zip", true, zipcore.DefaultOptions())
//	entry, _ := zipcore.NewBufferEntry("hello.txt", []byte("hello world"))
//	archive.Add(entry)
//	archive.Close() // commits and closes
//
// Modifying an existing archive:
//
//	archive, _ := zipcore.Open("existing.zip", false, zipcore.DefaultOptions())
//	archive.Remove("logs/obsolete.log")
//	archive.Rename("dir/old.txt", "dir/new.txt")
//	archive.Commit()
//
// Streaming onto a non-seekable sink:
//
//	stream := zipcore.NewOutputStream(conn, zipcore.DefaultOptions())
//	entry, _ := zipcore.NewBufferEntry("report.csv", data)
//	stream.PutNextEntry(entry)
//	stream.Write(data)
//	stream.Close()
package zipcore
