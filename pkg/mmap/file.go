// Package mmap maps checkpoint files read-only so frames can be decoded
// without copying the file into the heap first.
package mmap

import (
	"io"
	"os"
	"sync"

	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// File is a read-only view of a whole file. It implements io.Reader,
// io.ReaderAt and io.Closer. Read calls share a single cursor and are
// serialized; ReadAt and Bytes may be used concurrently until Close.
type File struct {
	f    *os.File
	data []byte

	mu  sync.Mutex
	off int64
}

// Open maps the named file. An empty file opens as an empty view.
func Open(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, trillerrors.Wrap(err, trillerrors.ErrorTypeIO, "failed to open file").
			WithDetail("file", name)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, trillerrors.Wrap(err, trillerrors.ErrorTypeIO, "failed to stat file").
			WithDetail("file", name)
	}

	m := &File{f: f}
	if st.Size() == 0 {
		return m, nil
	}
	if m.data, err = mapFile(f, int(st.Size())); err != nil {
		f.Close()
		return nil, trillerrors.Wrap(err, trillerrors.ErrorTypeIO, "failed to map file").
			WithDetail("file", name)
	}
	// Frames are read front to back.
	_ = advise(m.data, adviceSequential)
	return m, nil
}

// Len returns the file size.
func (m *File) Len() int { return len(m.data) }

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *File) Bytes() []byte { return m.data }

// Read implements io.Reader.
func (m *File) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.off:])
	m.off += int64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, trillerrors.Newf(trillerrors.ErrorTypeValidation, "negative offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WillNeed hints that the byte range [off, off+n) is about to be read.
func (m *File) WillNeed(off, n int64) {
	if off < 0 || off >= int64(len(m.data)) || n <= 0 {
		return
	}
	page := int64(os.Getpagesize())
	start := off / page * page
	end := min(off+n, int64(len(m.data)))
	_ = advise(m.data[start:end], adviceWillNeed)
}

// Close unmaps and closes the file.
func (m *File) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.data != nil {
		err = unmapFile(m.data)
		m.data = nil
	}
	if m.f != nil {
		if cerr := m.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.f = nil
	}
	if err != nil {
		return trillerrors.Wrap(err, trillerrors.ErrorTypeIO, "failed to close mapped file")
	}
	return nil
}

var (
	_ io.Reader   = (*File)(nil)
	_ io.ReaderAt = (*File)(nil)
	_ io.Closer   = (*File)(nil)
)
