// Package document loads local files for submission and describes them:
// detected media type, size, and page count for PDFs.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Backland-Labs/docflow/internal/logger"
)

// MediaTypePDF is the media type of PDF documents
const MediaTypePDF = "application/pdf"

var (
	// ErrNoFile is returned when no file was supplied
	ErrNoFile = errors.New("no file selected")
	// ErrEmptyFile is returned for zero byte files
	ErrEmptyFile = errors.New("file is empty")
	// ErrMediaType is returned when a file's media type is not accepted
	ErrMediaType = errors.New("unsupported media type")
	// ErrTooLarge is returned when a file exceeds the size limit
	ErrTooLarge = errors.New("file too large")
)

// File is a document held in memory for the duration of a run
type File struct {
	Name      string
	Data      []byte
	MediaType string
	Pages     int
}

// Size returns the payload size in bytes
func (f *File) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// New wraps in-memory data, detecting its media type. Empty data is allowed
// here; Validate rejects it.
func New(name string, data []byte) *File {
	f := &File{Name: name, Data: data}
	if len(data) > 0 {
		f.MediaType = Detect(data)
		if f.MediaType == MediaTypePDF {
			f.Pages = PageCount(data)
		}
	}
	return f
}

// Load reads a file from disk
func Load(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return New(filepath.Base(path), data), nil
}

// Detect returns the media type of data without parameters
func Detect(data []byte) string {
	mt := mimetype.Detect(data)
	s := mt.String()
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return s
}

// PageCount returns the number of pages in a PDF, or 0 if it cannot be parsed
func PageCount(data []byte) int {
	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.WithError(err).Warn("Failed to extract PDF page count")
		return 0
	}
	return count
}

// Validate checks a file against the accepted media types and the size limit.
// An empty allowed list accepts any type; a non-positive maxSize disables the
// size check.
func Validate(f *File, allowed []string, maxSize int64) error {
	if f == nil {
		return ErrNoFile
	}
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: %w", f.Name, ErrEmptyFile)
	}
	if maxSize > 0 && f.Size() > maxSize {
		return fmt.Errorf("%s is %d bytes, limit is %d: %w", f.Name, f.Size(), maxSize, ErrTooLarge)
	}
	if len(allowed) > 0 && !mimetype.EqualsAny(f.MediaType, allowed...) {
		return fmt.Errorf("%s has type %s, accepted types are %s: %w",
			f.Name, f.MediaType, strings.Join(allowed, ", "), ErrMediaType)
	}
	return nil
}
