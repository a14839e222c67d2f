package script

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spySource struct {
	r      io.Reader
	reads  int
	closed bool
}

func newSpy(s string) *spySource { return &spySource{r: strings.NewReader(s)} }

func (s *spySource) Read(p []byte) (int, error) {
	s.reads++
	return s.r.Read(p)
}

func (s *spySource) Close() error {
	s.closed = true
	return nil
}

type failingSource struct {
	data   []byte
	err    error
	closed bool
}

func (f *failingSource) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *failingSource) Close() error {
	f.closed = true
	return nil
}

func TestTranscodePassThrough(t *testing.T) {
	in := "from sense_hat import SenseHat"
	src := newSpy(in)

	res, err := Transcode(src, 8, 64)
	require.NoError(t, err)
	assert.Equal(t, in, res.Text)
	assert.Equal(t, len(in), res.RawLen)
	assert.Equal(t, res.RawLen, res.EscapedLen)
	assert.True(t, src.closed)
}

func TestTranscodeEscapesNewline(t *testing.T) {
	res, err := Transcode(newSpy("a\nb"), 16, 64)
	require.NoError(t, err)
	assert.Equal(t, `a\nb`, res.Text)
	assert.Len(t, res.Text, 4)
	assert.Equal(t, res.RawLen+1, res.EscapedLen)
}

func TestTranscodeCollapsesCRLF(t *testing.T) {
	tests := []struct {
		name      string
		blockSize int
	}{
		{"single block", 16},
		{"pair split across blocks", 2},
		{"one byte blocks", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Transcode(newSpy("a\r\nb"), tt.blockSize, 64)
			require.NoError(t, err)
			assert.Equal(t, `a\nb`, res.Text)
			assert.NotContains(t, res.Text, "\r")
			assert.Equal(t, 4, res.EscapedLen)
			assert.Equal(t, 4, res.RawLen)
		})
	}
}

func TestTranscodeDropsLoneCR(t *testing.T) {
	res, err := Transcode(newSpy("a\rb"), 16, 64)
	require.NoError(t, err)
	assert.Equal(t, "ab", res.Text)
}

func TestTranscodeOverflowBoundary(t *testing.T) {
	// "abcdef\n" escapes to 8 characters.
	res, err := Transcode(newSpy("abcdef\n"), 4, 8)
	require.NoError(t, err)
	assert.Equal(t, `abcdef\n`, res.Text)
	assert.Equal(t, 8, res.EscapedLen)

	src := newSpy("abcdefg\n")
	res, err = Transcode(src, 4, 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscodeOverflow))
	assert.Empty(t, res.Text)
	assert.True(t, src.closed)
}

func TestTranscodeOverflowStopsReading(t *testing.T) {
	src := &spySource{r: bytes.NewReader(bytes.Repeat([]byte("a"), 100))}

	_, err := Transcode(src, 4, 4)
	require.ErrorIs(t, err, ErrTranscodeOverflow)
	assert.Equal(t, 2, src.reads)
	assert.True(t, src.closed)
}

func TestTranscodeMultipleBlocks(t *testing.T) {
	in := "line one\nline two\r\nline three\n"
	res, err := Transcode(newSpy(in), 4, 128)
	require.NoError(t, err)
	assert.Equal(t, `line one\nline two\nline three\n`, res.Text)
	assert.Equal(t, len(in), res.RawLen)
	assert.Equal(t, len(res.Text), res.EscapedLen)
}

func TestTranscodeExactBlockMultiple(t *testing.T) {
	res, err := Transcode(newSpy("abcdefgh"), 4, 8)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", res.Text)
}

func TestTranscodeEmptySource(t *testing.T) {
	res, err := Transcode(newSpy(""), 4, 8)
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.RawLen)
}

func TestTranscodeReadError(t *testing.T) {
	src := &failingSource{data: []byte("ab"), err: errors.New("device fault")}

	_, err := Transcode(src, 4, 64)
	require.ErrorIs(t, err, ErrFileRead)
	assert.Contains(t, err.Error(), "device fault")
	assert.True(t, src.closed)
}

func TestTranscodeRejectsBadBlockSize(t *testing.T) {
	src := newSpy("abc")
	_, err := Transcode(src, 0, 64)
	require.Error(t, err)
	assert.True(t, src.closed)
}

func TestTranscodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hi.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hi')\n"), 0o644))

	res, err := TranscodeFile(path, 4, 64)
	require.NoError(t, err)
	assert.Equal(t, `print('hi')\n`, res.Text)
}

func TestTranscodeFileMissing(t *testing.T) {
	_, err := TranscodeFile(filepath.Join(t.TempDir(), "nope.py"), 4, 64)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestTranscodeFileDirectory(t *testing.T) {
	_, err := TranscodeFile(t.TempDir(), 4, 64)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestBoundedBuffer(t *testing.T) {
	b := NewBoundedBuffer(3)
	require.NoError(t, b.WriteByte('a'))
	n, err := b.Write([]byte("bc"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, b.Remaining())

	require.ErrorIs(t, b.WriteByte('d'), ErrBufferFull)
	_, err = b.Write([]byte("d"))
	require.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, "abc", b.String())
	assert.Equal(t, 3, b.Cap())
}

func TestBoundedBufferRejectsPartialWrite(t *testing.T) {
	b := NewBoundedBuffer(2)
	require.NoError(t, b.WriteByte('a'))
	_, err := b.Write([]byte(`\n`))
	require.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, "a", b.String())
}
