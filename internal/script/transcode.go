// Package script turns script files and inline text into bounded script
// command payloads for the Pi.
//
// Script text travels in a single-line field, so line-feeds are escaped as
// the two characters `\n` and carriage returns are dropped.
package script

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

const (
	cr = '\r'
	lf = '\n'
)

var escapedLF = []byte{'\\', 'n'}

// Result is the outcome of a successful transcode.
type Result struct {
	Text       string // escaped script text
	RawLen     int    // bytes consumed from the source
	EscapedLen int    // len(Text)
}

// Transcode reads src in blockSize blocks and escapes it into at most maxLen bytes.
// A block shorter than blockSize ends the stream. src is closed before returning.
func Transcode(src io.ReadCloser, blockSize, maxLen int) (Result, error) {
	defer func() { _ = src.Close() }()

	if blockSize <= 0 {
		return Result{}, fmt.Errorf("invalid read block size %d", blockSize)
	}

	out := NewBoundedBuffer(maxLen)
	block := make([]byte, blockSize)
	raw := 0

	for {
		n, err := io.ReadFull(src, block)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return Result{}, fmt.Errorf("%w: %w", ErrFileRead, err)
		}
		raw += n

		if err := escapeBlock(out, block[:n]); err != nil {
			return Result{}, fmt.Errorf("%w: script length greater than %d characters", ErrTranscodeOverflow, maxLen)
		}

		if n < blockSize {
			break
		}
	}

	return Result{Text: out.String(), RawLen: raw, EscapedLen: out.Len()}, nil
}

// escapeBlock writes one block into out. Every CR is dropped, so a CR/LF
// pair split across two blocks still yields a single escaped newline.
func escapeBlock(out *BoundedBuffer, block []byte) error {
	for _, c := range block {
		var err error
		switch c {
		case cr:
			continue
		case lf:
			_, err = out.Write(escapedLF)
		default:
			err = out.WriteByte(c)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// OpenFile checks that path names an existing regular file and opens it read-only.
func OpenFile(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w %s: %w", ErrFileOpen, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrFileOpen, path, err)
	}
	return f, nil
}

// TranscodeFile opens path and transcodes it. The file is always closed.
func TranscodeFile(path string, blockSize, maxLen int) (Result, error) {
	f, err := OpenFile(path)
	if err != nil {
		return Result{}, err
	}
	return Transcode(f, blockSize, maxLen)
}
