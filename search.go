package umdreplace

import (
	"errors"
	"fmt"
	"github.com/davejbax/go-umdreplace/internal/sector"
	"github.com/davejbax/go-umdreplace/internal/spec"
)

// maxDirectoryDepth bounds recursion through the directory tree, so that a directory record pointing back at one of
// its ancestors cannot recurse forever.
const maxDirectoryDepth = 128

var (
	ErrFileNotFound = errors.New("file not found in image")
	ErrTreeTooDeep  = errors.New("directory tree is too deep")
)

// Match is a file located by [Search].
type Match struct {
	// Offset is the absolute byte offset of the file's directory record within the image.
	Offset int64

	// Path is the file's path as recorded on the disc, without version suffixes.
	Path string

	// Record is the file's directory record.
	Record *spec.DirectoryRecord
}

// Search walks the directory tree rooted at the extent [location, location+length) and returns the first file whose
// path matches target. Matching ignores ASCII case; target may use slashes or backslashes, with or without a leading
// separator. Directories never match.
func Search(image *sector.Image, target string, location uint32, length uint32) (*Match, error) {
	target = NormalizePath(target)

	match, err := search(image, target, "", location, length, 0)
	if err != nil {
		return nil, err
	}

	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, target)
	}

	return match, nil
}

func search(image *sector.Image, target string, current imagePath, location uint32, length uint32, depth int) (*Match, error) {
	if depth > maxDirectoryDepth {
		return nil, fmt.Errorf("%w: more than %d levels below the root", ErrTreeTooDeep, maxDirectoryDepth)
	}

	geometry := image.Geometry()
	sectors := geometry.SectorsFor(int64(length))

	for i := int64(0); i < sectors; i++ {
		lba := int64(location) + i

		p, err := image.ReadSectors(lba, 1)
		if err != nil {
			return nil, fmt.Errorf("could not read directory '%s': %w", current, err)
		}

		var match *Match
		err = eachRecord(geometry.Data(p, 0), func(pos int, record *spec.DirectoryRecord) (bool, error) {
			if record.FileIdentifier.IsSelfOrParent() {
				return true, nil
			}

			candidate, err := current.join(recordName(record.FileIdentifier))
			if err != nil {
				return false, err
			}

			if record.IsDir() {
				found, err := search(image, target, candidate, record.ExtentLocation.LittleValue(), record.DataLength.LittleValue(), depth+1)
				if err != nil {
					return false, err
				}

				match = found
				return found == nil, nil
			}

			if candidate.matches(target) {
				match = &Match{
					Offset: geometry.Offset(lba, int64(pos)),
					Path:   string(candidate),
					Record: record,
				}
				return false, nil
			}

			return true, nil
		})
		if err != nil {
			return nil, err
		}

		if match != nil {
			return match, nil
		}
	}

	return nil, nil
}

// eachRecord calls fn for every directory record held in the user data of one sector, in the order they are
// recorded, until a zero length byte marks the end of the sector's records or fn returns false.
func eachRecord(data []byte, fn func(pos int, record *spec.DirectoryRecord) (bool, error)) error {
	for pos := 0; pos < len(data) && data[pos] != 0; pos += int(data[pos]) {
		record, err := spec.ReadDirectoryRecord(data[pos:])
		if err != nil {
			return fmt.Errorf("could not read directory record at position %d: %w", pos, err)
		}

		if more, err := fn(pos, record); err != nil || !more {
			return err
		}
	}

	return nil
}
