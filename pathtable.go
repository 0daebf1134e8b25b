package umdreplace

import (
	"bytes"
	"fmt"
	"github.com/davejbax/go-umdreplace/internal/spec"
	"github.com/sirupsen/logrus"
	"slices"
)

// updatePathTable relocates the entries of the path table at location whose extents lie after the replaced file. The
// table is written back, re-encoded in its own byte order, only if at least one entry moved.
func (r *relocation) updatePathTable(location uint32, length uint32, bigEndian bool) error {
	geometry := r.image.Geometry()
	sectors := geometry.SectorsFor(int64(length))

	p, err := r.image.ReadSectors(int64(location), sectors)
	if err != nil {
		return fmt.Errorf("could not read path table at sector %d: %w", location, err)
	}

	// Path tables are contiguous user data, which for Mode 0 images is the whole run of sectors
	table := p[geometry.DataOffset:]

	var records []*spec.PathTableRecord
	relocated := 0

	pos := 0
	for pos < int(length) && table[pos] != 0 {
		record, err := spec.ReadPathTableRecord(table[pos:], bigEndian)
		if err != nil {
			return fmt.Errorf("could not read path table entry at position %d: %w", pos, err)
		}

		if r.shifts(record.LocationOfExtent) {
			r.log.WithFields(logrus.Fields{
				"directory": recordName(record.DirectoryIdentifier),
				"from":      record.LocationOfExtent,
				"to":        r.moved(record.LocationOfExtent),
			}).Debug("relocated path table entry")

			record.LocationOfExtent = r.moved(record.LocationOfExtent)
			relocated++
		}

		records = append(records, record)
		pos += spec.PathTableRecordLength(len(record.DirectoryIdentifier))
	}

	if relocated == 0 {
		return nil
	}

	var encoded bytes.Buffer
	if _, err := spec.PathTable(slices.Values(records), bigEndian).WriteTo(&encoded); err != nil {
		return fmt.Errorf("could not encode path table: %w", err)
	}

	if encoded.Len() != pos {
		// Re-encoding a table we just decoded should never change its length
		panic(fmt.Sprintf("unexpected path table length: decoded %d bytes, encoded %d", pos, encoded.Len()))
	}

	copy(table, encoded.Bytes())

	if err := r.image.WriteSectors(int64(location), p); err != nil {
		return fmt.Errorf("could not write path table at sector %d: %w", location, err)
	}

	r.relocatedPathTableEntries += relocated

	return nil
}
