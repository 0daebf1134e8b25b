// Package sector provides whole-sector access to disc images.
package sector

import (
	"errors"
	"fmt"
)

// Geometry describes how user data is laid out inside each sector of an image.
type Geometry struct {
	// SectorSize is the number of bytes each sector occupies in the image file.
	SectorSize int64

	// DataOffset is the position of the user data area within a sector.
	DataOffset int64

	// DataLength is the number of user data bytes held by each sector.
	DataLength int64
}

// Mode0 is the layout of PSP UMD and PS2 DVD images: 2048-byte sectors made of nothing but user data.
var Mode0 = Geometry{
	SectorSize: 2048,
	DataOffset: 0,
	DataLength: 2048,
}

var errInvalidGeometry = errors.New("invalid sector geometry")

// Validate checks that the user data area lies within the sector.
func (g Geometry) Validate() error {
	if g.SectorSize <= 0 || g.DataLength <= 0 || g.DataOffset < 0 || g.DataOffset+g.DataLength > g.SectorSize {
		return fmt.Errorf("%w: sector size %d, data offset %d, data length %d", errInvalidGeometry, g.SectorSize, g.DataOffset, g.DataLength)
	}

	return nil
}

// SectorsFor is the number of sectors needed to hold size bytes of user data.
func (g Geometry) SectorsFor(size int64) int64 {
	return (size + g.DataLength - 1) / g.DataLength
}

// Offset is the absolute byte offset of position pos within the user data of sector lba.
func (g Geometry) Offset(lba int64, pos int64) int64 {
	return lba*g.SectorSize + g.DataOffset + pos
}

// Locate splits an absolute byte offset produced by [Geometry.Offset] back into its sector and the position of the
// byte within the raw sector.
func (g Geometry) Locate(offset int64) (lba int64, pos int64) {
	return offset / g.SectorSize, offset % g.SectorSize
}

// Data returns the user data area of the i-th sector held in p.
func (g Geometry) Data(p []byte, i int64) []byte {
	start := i*g.SectorSize + g.DataOffset
	return p[start : start+g.DataLength]
}
