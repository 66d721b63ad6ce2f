// Package attachment validates uploaded files and stages them for a single relay call.
//
// Validation is an extension allow-list only: no content sniffing, size cap
// or malware scanning is performed.
package attachment

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrFileTypeNotAllowed = errors.New("File type not allowed")
	ErrNoFile             = errors.New("No file uploaded")
)

// AllowedExtensions is the fixed set of accepted lowercase extensions.
var AllowedExtensions = []string{"pdf", "txt", "csv", "xlsx", "xls", "json", "png", "jpg", "jpeg"}

// Asset is a validated upload. It is transient and never persisted.
type Asset struct {
	// TempPath is where the file is staged for the backend; empty until staged.
	TempPath    string
	DisplayName string
	Extension   string
}

// Extension returns the lowercase extension of filename without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Validate accepts filename iff its lowercase extension is allow-listed.
func Validate(filename, tmpPath string) (*Asset, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, ErrNoFile
	}
	ext := Extension(filename)
	if !slices.Contains(AllowedExtensions, ext) {
		return nil, ErrFileTypeNotAllowed
	}
	return &Asset{
		TempPath:    tmpPath,
		DisplayName: filename,
		Extension:   ext,
	}, nil
}
