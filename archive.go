// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/haldane-loop/zipcore/internal/wire"
)

// Archive is the top-level handle on a ZIP file: a path-backed (or
// in-memory) EntrySet plus the bookkeeping Commit needs to know whether
// anything actually changed since it was opened. It composes
// CentralDirectory, OutputStream, and EntrySet rather than reimplementing
// any of their logic.
type Archive struct {
	path    string
	options Options
	comment string

	entries *EntrySet
	shadow  *EntrySet // snapshot taken at Open/last Commit
	shadowComment string

	created bool // true until the first successful Commit of a brand-new archive
	buffer  bool // true when backed by an in-memory reader, never committed to a path
	closed  bool

	src     io.ReaderAt
	srcSize int64
}

// Open opens the ZIP archive at path. An existing, non-empty file is
// opened read-only and parsed; changes reach disk only through Commit. A
// missing path starts an empty archive only when
// create is true. A zero-sized existing file and a missing path with
// create false both fail, per the semantics an Archive caller must
// choose between explicitly.
func Open(path string, create bool, options Options) (*Archive, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %q is a directory", ErrIO, path)
		}
		if info.Size() == 0 {
			return nil, fmt.Errorf("%w: %q is empty; pass create to start a new archive there", ErrMalformedArchive, path)
		}
		return openExisting(path, options)
	case os.IsNotExist(err):
		if !create {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		return &Archive{
			path:    path,
			options: options,
			entries: NewEntrySet(),
			shadow:  NewEntrySet(),
			created: true,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
}

func openExisting(path string, options Options) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	set, loc, err := ReadCentralDirectory(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	attachArchiveSources(set, f, stat.Size())

	return &Archive{
		path:          path,
		options:       options,
		entries:       set,
		shadow:        set.Dup(),
		comment:       loc.Comment,
		shadowComment: loc.Comment,
		src:           f,
		srcSize:       stat.Size(),
	}, nil
}

// OpenBuffer parses data as a complete, already-existing archive held
// entirely in memory. There is no backing path: Commit is always a no-op,
// matching spec's "in-memory backing store" exemption.
func OpenBuffer(data []byte, options Options) (*Archive, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer is not a valid archive", ErrMalformedArchive)
	}
	r := bytes.NewReader(data)
	set, loc, err := ReadCentralDirectory(r, int64(len(data)))
	if err != nil {
		return nil, err
	}
	attachArchiveSources(set, r, int64(len(data)))

	return &Archive{
		options:       options,
		buffer:        true,
		entries:       set,
		shadow:        set.Dup(),
		comment:       loc.Comment,
		shadowComment: loc.Comment,
		src:           r,
		srcSize:       int64(len(data)),
	}, nil
}

// attachArchiveSources gives every non-directory entry parsed from an
// existing archive a RawContentSource bound to src, so CopyRawEntry can
// splice its bytes unchanged on Commit and GetInputStream/Read can
// decompress on demand.
func attachArchiveSources(set *EntrySet, src io.ReaderAt, size int64) {
	for _, e := range set.Entries() {
		if e.Directory() {
			continue
		}
		e.source = archiveSource{
			src:               src,
			srcSize:           size,
			offset:            e.LocalHeaderOffset(),
			compressedSize:    e.CompressedSize(),
			size:              e.Size(),
			compressionMethod: e.CompressionMethod(),
			crc:               e.CRC32(),
		}
	}
}

// CommitRequired reports whether Commit would do anything: a fresh
// archive, a changed comment, an EntrySet that no longer matches the
// snapshot taken at Open, or any individual dirty entry all require one.
func (a *Archive) CommitRequired() bool {
	if a.created {
		return true
	}
	if a.comment != a.shadowComment {
		return true
	}
	if !a.entries.Equal(a.shadow) {
		return true
	}
	for _, e := range a.entries.Entries() {
		if e.Dirty() {
			return true
		}
	}
	return false
}

// Commit is a no-op for an in-memory archive or when CommitRequired is
// false. Otherwise it streams every entry into a temporary file beside
// path, renames it over path, and re-opens from disk so in-memory
// offsets match the committed layout. Any failure leaves path untouched
// and unlinks the temporary file.
func (a *Archive) Commit() error {
	if a.buffer || a.path == "" || !a.CommitRequired() {
		return nil
	}

	dir := filepath.Dir(a.path)
	tmp, err := os.CreateTemp(dir, ".zipcore-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	tmpPath := tmp.Name()
	succeeded := false
	defer func() {
		if !succeeded {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	out := NewOutputStream(tmp, a.options)
	out.SetComment(a.comment)
	for _, e := range a.entries.Entries() {
		if err := a.writeCommitEntry(out, e); err != nil {
			return fmt.Errorf("%w: commit entry %q: %v", ErrIO, e.Name(), err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	succeeded = true

	return a.reopen()
}

// writeCommitEntry emits one entry during Commit: directories always go
// through PutNextEntry, an unchanged entry with a RawContentSource is
// byte-spliced via CopyRawEntry, and anything else is streamed through
// its ContentSource and the codec.
func (a *Archive) writeCommitEntry(out *OutputStream, e *Entry) error {
	if e.Directory() {
		return out.PutNextEntry(e)
	}
	if !e.Dirty() {
		if _, ok := e.Source().(RawContentSource); ok {
			return out.CopyRawEntry(e)
		}
	}

	src := e.Source()
	if src == nil {
		return fmt.Errorf("%w: entry %q has no content source", ErrArgument, e.Name())
	}
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := out.PutNextEntry(e); err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.FinalizeCurrentEntry()
}

// reopen re-parses the just-committed file from disk, replacing the
// in-memory EntrySet and shadow snapshot so subsequent LocalHeaderOffset
// values match the file actually on disk.
func (a *Archive) reopen() error {
	if closer, ok := a.src.(io.Closer); ok {
		closer.Close()
	}

	f, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	set, loc, err := ReadCentralDirectory(f, stat.Size())
	if err != nil {
		f.Close()
		return err
	}
	attachArchiveSources(set, f, stat.Size())

	a.src, a.srcSize = f, stat.Size()
	a.entries, a.shadow = set, set.Dup()
	a.comment, a.shadowComment = loc.Comment, loc.Comment
	a.created = false
	return nil
}

// Close commits any pending changes and releases the backing file
// handle. Close is idempotent.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	err := a.Commit()
	if closer, ok := a.src.(io.Closer); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	a.closed = true
	return err
}

// Comment returns the archive-level comment.
func (a *Archive) Comment() string { return a.comment }

// SetComment sets the archive-level comment, written to the EOCD on the
// next Commit.
func (a *Archive) SetComment(c string) { a.comment = c }

// Add inserts e into the archive. If an entry with the same name already
// exists, the Options conflict policy decides: declining leaves the
// existing entry untouched and returns ErrEntryExists.
func (a *Archive) Add(e *Entry) error {
	if existing, err := a.entries.FindEntry(e.Name()); err == nil {
		if !a.options.conflictPolicy()(existing) {
			return fmt.Errorf("%w: %q", ErrEntryExists, e.Name())
		}
		a.entries.Delete(e.Name())
	}
	return a.entries.Insert(e)
}

// AddStored is a convenience for Add that forces STORED compression, the
// layout EPUB-style archives require for their leading mimetype entry.
func (a *Archive) AddStored(name string, data []byte) (*Entry, error) {
	e, err := NewBufferEntry(name, data)
	if err != nil {
		return nil, err
	}
	e.SetCompressionMethod(MethodStored)
	if err := a.Add(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Remove deletes the entry named name. Returns ErrNotFound if it is not
// present.
func (a *Archive) Remove(name string) error {
	if !a.entries.Include(name) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	a.entries.Delete(name)
	return nil
}

// Rename moves the entry named oldName to newName, subject to the same
// conflict policy as Add.
func (a *Archive) Rename(oldName, newName string) error {
	if oldName == newName {
		_, err := a.entries.FindEntry(oldName)
		return err
	}

	e, err := a.entries.FindEntry(oldName)
	if err != nil {
		return err
	}
	if err := validateEntryName(newName); err != nil {
		return err
	}
	if existing, err := a.entries.FindEntry(newName); err == nil {
		if !a.options.conflictPolicy()(existing) {
			return fmt.Errorf("%w: %q", ErrEntryExists, newName)
		}
		a.entries.Delete(newName)
	}
	a.entries.Delete(oldName)
	e.name = newName
	return a.entries.Insert(e)
}

// Replace swaps the entry named name's content for src, marking it dirty
// so Commit re-encodes it rather than splicing its old compressed bytes.
// size is the uncompressed length of src's content.
func (a *Archive) Replace(name string, src ContentSource, size uint64) error {
	e, err := a.entries.FindEntry(name)
	if err != nil {
		return err
	}
	e.SetSource(src)
	e.size = size
	return nil
}

// Mkdir adds an explicit directory entry.
func (a *Archive) Mkdir(name string) (*Entry, error) {
	d, err := NewDirectoryEntry(name)
	if err != nil {
		return nil, err
	}
	if err := a.Add(d); err != nil {
		return nil, err
	}
	return d, nil
}

// FindEntry returns the entry named name and whether it was present.
func (a *Archive) FindEntry(name string) (*Entry, bool) {
	e, err := a.entries.FindEntry(name)
	return e, err == nil
}

// GetEntry returns the entry named name, or ErrNotFound.
func (a *Archive) GetEntry(name string) (*Entry, error) {
	return a.entries.FindEntry(name)
}

// Glob returns every entry whose name matches pattern; see EntrySet.Glob.
func (a *Archive) Glob(pattern string) ([]*Entry, error) {
	return a.entries.Glob(pattern)
}

// Entries returns the archive's entries in insertion order.
func (a *Archive) Entries() []*Entry { return a.entries.Entries() }

// Read returns the full decompressed content of the entry named name.
func (a *Archive) Read(name string) ([]byte, error) {
	rc, err := a.GetInputStream(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// GetInputStream opens a reader over the entry named name's decompressed
// content. The caller must Close it.
func (a *Archive) GetInputStream(name string) (io.ReadCloser, error) {
	e, err := a.entries.FindEntry(name)
	if err != nil {
		return nil, err
	}
	if e.Directory() {
		return nil, fmt.Errorf("%w: %q is a directory", ErrArgument, name)
	}
	src := e.Source()
	if src == nil {
		return nil, fmt.Errorf("%w: entry %q has no content available", ErrIO, name)
	}
	return src.Open()
}

// GetOutputStream returns a writer that replaces the content of the
// already-added entry named name. Closing it commits the written bytes as
// the entry's new source and marks it dirty for the next Commit.
// Requesting one for a directory entry fails with ErrArgument.
func (a *Archive) GetOutputStream(name string) (io.WriteCloser, error) {
	e, err := a.entries.FindEntry(name)
	if err != nil {
		return nil, err
	}
	if e.Directory() {
		return nil, fmt.Errorf("%w: %q is a directory", ErrArgument, name)
	}
	return &entryWriter{e: e}, nil
}

// entryWriter buffers written bytes in memory and installs them as its
// entry's content source on Close, implementing the scoped-resource
// pattern spec.md's Callback Blocks design note calls for: guaranteed
// install on the one exit path a Go io.WriteCloser has.
type entryWriter struct {
	e   *Entry
	buf bytes.Buffer
}

func (w *entryWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *entryWriter) Close() error {
	data := w.buf.Bytes()
	w.e.SetSource(bufferSource{data: data})
	w.e.size = uint64(len(data))
	return nil
}

// Extract writes every entry's content under destDir, creating parent
// directories as needed and refusing any entry name that would escape
// destDir ("Zip Slip"). Directory mtimes are restored last, in reverse
// insertion order, so writing a child's file doesn't bump its parent's.
func (a *Archive) Extract(destDir string) error {
	destDir = filepath.Clean(destDir)
	var dirsToRestore []*Entry

	for _, e := range a.entries.Entries() {
		fpath := filepath.Join(destDir, filepath.FromSlash(e.Name()))
		if fpath != destDir && !strings.HasPrefix(fpath, destDir+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %q escapes the destination directory", ErrArgument, e.Name())
		}

		if e.Directory() {
			if err := os.MkdirAll(fpath, extractDirPerm(e, a.options)); err != nil {
				return fmt.Errorf("%w: %v", ErrIO, err)
			}
			dirsToRestore = append(dirsToRestore, e)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		if err := a.extractFile(e, fpath); err != nil {
			return fmt.Errorf("extract %q: %w", e.Name(), err)
		}
	}

	for i := len(dirsToRestore) - 1; i >= 0; i-- {
		e := dirsToRestore[i]
		restoreMetadata(e, filepath.Join(destDir, filepath.FromSlash(e.Name())), a.options)
	}
	return nil
}

func (a *Archive) extractFile(e *Entry, fpath string) error {
	rc, err := e.Source().Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dst, err := os.Create(fpath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, rc); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	restoreMetadata(e, fpath, a.options)
	return nil
}

// restoreMetadata applies permissions/ownership/times per options,
// best-effort: failures are ignored since they commonly occur on
// filesystems or under privilege levels that don't support the call.
func restoreMetadata(e *Entry, fpath string, options Options) {
	if options.RestorePermissions {
		if perm, ok := e.UnixPerms(); ok {
			os.Chmod(fpath, perm)
		}
	}
	if options.RestoreOwnership {
		if uid, gid, ok := e.UnixOwner(); ok {
			os.Chown(fpath, int(uid), int(gid))
		}
	}
	if options.RestoreTimes {
		t := e.Time()
		os.Chtimes(fpath, t, t)
	}
}

func extractDirPerm(e *Entry, options Options) fs.FileMode {
	if options.RestorePermissions {
		if perm, ok := e.UnixPerms(); ok {
			return perm
		}
	}
	return 0o755
}

// archiveSource is the RawContentSource attached to every entry parsed
// from an existing archive: it locates the entry's body by re-reading its
// local file header (filename/extra lengths vary per entry, so the body
// offset can't be derived from the central directory's fixed fields
// alone) and decompresses on Open via Inflater.
type archiveSource struct {
	src               io.ReaderAt
	srcSize           int64
	offset            uint64
	compressedSize    uint64
	size              uint64
	compressionMethod uint16
	crc               uint32
}

func (s archiveSource) bodyOffset() (int64, error) {
	sr := io.NewSectionReader(s.src, int64(s.offset), s.srcSize-int64(s.offset))

	var sig [4]byte
	if _, err := io.ReadFull(sr, sig[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	if wire.GetUint32(sig[:]) != wire.LocalFileHeaderSignature {
		return 0, fmt.Errorf("%w: local file header signature mismatch at offset %d", ErrMalformedArchive, s.offset)
	}
	if _, err := wire.ReadLocalFileHeader(sr); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	pos, err := sr.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return int64(s.offset) + pos, nil
}

// OpenRaw returns the entry's compressed bytes exactly as stored, with no
// decoding, for CopyRawEntry to splice.
func (s archiveSource) OpenRaw() (io.ReadCloser, error) {
	body, err := s.bodyOffset()
	if err != nil {
		return nil, err
	}
	return io.NopCloser(io.NewSectionReader(s.src, body, int64(s.compressedSize))), nil
}

// Open decompresses the entry's bytes, validating CRC-32 and size at EOF.
func (s archiveSource) Open() (io.ReadCloser, error) {
	raw, err := s.OpenRaw()
	if err != nil {
		return nil, err
	}
	inf, err := NewInflater(s.compressionMethod, raw, s.crc, s.size)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return &inflaterReadCloser{Inflater: inf, raw: raw}, nil
}

type inflaterReadCloser struct {
	*Inflater
	raw io.Closer
}

func (i *inflaterReadCloser) Close() error {
	err := i.Inflater.Close()
	if cerr := i.raw.Close(); err == nil {
		err = cerr
	}
	return err
}
