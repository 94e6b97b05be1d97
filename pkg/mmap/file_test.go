package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFileReadsWholeContents(t *testing.T) {
	want := []byte("TRLB frames follow")
	f, err := Open(writeFile(t, want))
	require.NoError(t, err)

	assert.Equal(t, len(want), f.Len())
	assert.Equal(t, want, f.Bytes())

	f.WillNeed(0, int64(f.Len()))
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	n, err := f.Read(make([]byte, 4))
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)

	require.NoError(t, f.Close())
	assert.Nil(t, f.Bytes())
	assert.NoError(t, f.Close())
}

func TestFileReadAt(t *testing.T) {
	f, err := Open(writeFile(t, []byte("0123456789")))
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))

	n, err = f.ReadAt(buf, 8)
	assert.Equal(t, 2, n)
	assert.Equal(t, io.EOF, err)

	_, err = f.ReadAt(buf, -1)
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeValidation))
}

func TestEmptyFile(t *testing.T) {
	f, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	defer f.Close()

	assert.Zero(t, f.Len())
	_, err = f.Read(make([]byte, 1))
	assert.Equal(t, io.EOF, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeIO))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
