package umdreplace

import (
	"fmt"
	"github.com/davejbax/go-umdreplace/internal/encode"
	"github.com/davejbax/go-umdreplace/internal/spec"
	"github.com/sirupsen/logrus"
)

// updateTOC relocates the extent locations of every directory record in the directory at [location, location+length)
// and, recursively, in every directory below it.
//
// A record is relocated when its extent lies after the replaced file, or when it shares the replaced file's location
// but is recorded after the file's own record: this is the case for empty files that were given the same location as
// the replaced file.
//
// Subdirectories are relocated before they are descended into, so that the recursive call reads the directory from
// the location it has moved to.
func (r *relocation) updateTOC(location uint32, length uint32, depth int) error {
	if depth > maxDirectoryDepth {
		return fmt.Errorf("%w: more than %d levels below the root", ErrTreeTooDeep, maxDirectoryDepth)
	}

	geometry := r.image.Geometry()
	sectors := geometry.SectorsFor(int64(length))

	for i := int64(0); i < sectors; i++ {
		lba := int64(location) + i

		p, err := r.image.ReadSectors(lba, 1)
		if err != nil {
			return fmt.Errorf("could not read directory at sector %d: %w", lba, err)
		}

		data := geometry.Data(p, 0)
		changed := false

		err = eachRecord(data, func(pos int, record *spec.DirectoryRecord) (bool, error) {
			extent := record.ExtentLocation.LittleValue()
			offset := geometry.Offset(lba, int64(pos))

			if r.shifts(extent) || (extent == r.oldLocation && offset > r.foundOffset) {
				relocated := r.moved(extent)
				encode.PutUInt32BothByte(data[pos+spec.DirectoryRecordExtentLocationOffset:], relocated)

				r.log.WithFields(logrus.Fields{
					"record": recordName(record.FileIdentifier),
					"from":   extent,
					"to":     relocated,
				}).Debug("relocated directory record")

				extent = relocated
				changed = true
				r.relocatedRecords++
			}

			if record.IsDir() && !record.FileIdentifier.IsSelfOrParent() {
				if err := r.updateTOC(extent, record.DataLength.LittleValue(), depth+1); err != nil {
					return false, err
				}
			}

			return true, nil
		})
		if err != nil {
			return err
		}

		if changed {
			if err := r.image.WriteSectors(lba, p); err != nil {
				return fmt.Errorf("could not write directory at sector %d: %w", lba, err)
			}
		}
	}

	return nil
}
