package umdreplace

import (
	"github.com/davejbax/go-umdreplace/internal/sector"
	"github.com/sirupsen/logrus"
)

// relocation shifts every sector reference that lies beyond a replaced file by the change in the file's sector count.
// A relocation is applied to a freshly rebuilt image, in which everything after the file has already been moved.
type relocation struct {
	image *sector.Image
	log   logrus.FieldLogger

	// oldLocation is the first sector of the replaced file before the replacement.
	oldLocation uint32

	// foundOffset is the absolute byte offset of the replaced file's directory record in the rebuilt image. Records
	// sharing the file's old location are only relocated when they come after this offset.
	foundOffset int64

	// diff is the replacement's sector count minus the original's.
	diff int64

	relocatedRecords          int
	relocatedPathTableEntries int
}

// shifts reports whether a structure at location, which does not share the replaced file's location, lies after the
// file and must be relocated.
func (r *relocation) shifts(location uint32) bool {
	return location > r.oldLocation
}

func (r *relocation) moved(location uint32) uint32 {
	return uint32(int64(location) + r.diff)
}
