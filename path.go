package umdreplace

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/davejbax/go-umdreplace/internal/spec"
	"strings"
)

const (
	// maxPathLength is the longest path, in bytes, that may be assembled while walking the directory tree.
	maxPathLength = 255

	pathSeparator = '/'
)

var ErrPathTooLong = errors.New("path in image is too long")

// imagePath is a slash-separated path inside an image, as assembled from directory record identifiers. Its length
// is bounded by maxPathLength.
type imagePath string

func (p imagePath) join(name string) (imagePath, error) {
	joined := string(p) + string(pathSeparator) + name
	if len(joined) > maxPathLength {
		return p, fmt.Errorf("%w: '%s%c%s' exceeds %d bytes", ErrPathTooLong, p, pathSeparator, name, maxPathLength)
	}

	return imagePath(joined), nil
}

// matches compares two paths one byte at a time with bit 5 masked off, which folds ASCII letters to upper case.
func (p imagePath) matches(other string) bool {
	if len(p) != len(other) {
		return false
	}

	for i := 0; i < len(p); i++ {
		if p[i]&0xDF != other[i]&0xDF {
			return false
		}
	}

	return true
}

// NormalizePath turns a user-supplied path inside an image into the form directory search expects: both slashes and
// backslashes act as separators, and the path always starts with a separator.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, string(pathSeparator))
	if !strings.HasPrefix(p, string(pathSeparator)) {
		p = string(pathSeparator) + p
	}

	return p
}

// recordName is the name a directory record contributes to a path: its identifier up to the first NUL byte, with a
// trailing ';' version suffix removed.
func recordName(identifier spec.FileIdentifier) string {
	name := []byte(identifier)
	if i := bytes.IndexByte(name, 0); i != -1 {
		name = name[:i]
	}

	if i := bytes.LastIndexByte(name, ';'); i > 0 && i < len(name)-1 && isDigits(name[i+1:]) {
		name = name[:i]
	}

	return string(name)
}

func isDigits(p []byte) bool {
	for _, c := range p {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
