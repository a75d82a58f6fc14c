// Package security screens vocabulary files before sources read them.
package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// DefaultMaxFileSize caps a single vocabulary file
const DefaultMaxFileSize = 256 << 20

// ErrBinaryFile is returned for files that are not text
var ErrBinaryFile = errors.New("file appears to be binary")

// FileValidator rejects files that are too large to load or are not text.
// A wordlist glob that also matches an archive or a database file would
// otherwise fill a group with garbage members.
type FileValidator struct {
	MaxSize    int64 // 0 disables the size check
	HeaderSize int64 // bytes inspected for binary content
}

// NewFileValidator creates a validator with the given size cap in bytes
func NewFileValidator(maxSize int64) *FileValidator {
	return &FileValidator{
		MaxSize:    maxSize,
		HeaderSize: 64 * 1024,
	}
}

// Validate reads only the header of path
func (fv *FileValidator) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if fv.MaxSize > 0 && info.Size() > fv.MaxSize {
		return fmt.Errorf("%s is %d bytes, over the %d byte limit", path, info.Size(), fv.MaxSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, fv.HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read header: %w", err)
	}
	return fv.checkHeader(path, header[:n])
}

// ReadFile validates path and returns its contents
func (fv *FileValidator) ReadFile(path string) ([]byte, error) {
	if err := fv.Validate(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (fv *FileValidator) checkHeader(path string, header []byte) error {
	if kind := magicKind(header); kind != "" {
		return fmt.Errorf("%s: %w (%s signature)", path, ErrBinaryFile, kind)
	}
	if isBinaryData(header) {
		return fmt.Errorf("%s: %w", path, ErrBinaryFile)
	}
	return nil
}

// signatures of formats that end up next to vocabulary files
var signatures = []struct {
	kind  string
	magic []byte
}{
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"gif", []byte("GIF8")},
	{"pdf", []byte("%PDF-")},
	{"zip", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"gzip", []byte{0x1F, 0x8B}},
	{"sqlite", []byte("SQLite format 3\x00")},
	{"executable", []byte{0x7F, 'E', 'L', 'F'}},
	{"executable", []byte{0x4D, 0x5A}},
}

func magicKind(header []byte) string {
	for _, s := range signatures {
		if bytes.HasPrefix(header, s.magic) {
			return s.kind
		}
	}
	return ""
}

// isBinaryData reports NUL bytes, invalid UTF-8, or more than 30% control
// characters other than whitespace.
func isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}

	// The header may cut a multi-byte rune in half
	trimmed := data
	for i := 0; i < utf8.UTFMax && len(trimmed) > 0 && !utf8.Valid(trimmed); i++ {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if !utf8.Valid(trimmed) {
		return true
	}

	control := 0
	for _, b := range data {
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			control++
		}
	}
	return float64(control)/float64(len(data)) > 0.3
}
