package umdreplace

import "fmt"

// Result describes a completed replacement.
type Result struct {
	// Path is the replaced file's path as recorded in the image.
	Path string

	// Location is the first sector of the file's data, which does not change.
	Location uint32

	OldSize    uint32
	NewSize    uint32
	OldSectors int64
	NewSectors int64

	// Diff is NewSectors - OldSectors: the number of sectors everything after the file moved by.
	Diff int64

	// Rebuilt is true if the image was rebuilt rather than patched in place.
	Rebuilt bool

	RelocatedRecords          int
	RelocatedPathTableEntries int
}

// Summary describes how the size of the image changed, e.g. "the new image has 2 more sectors than the original
// image".
func (r *Result) Summary() string {
	if r.Diff == 0 {
		return "the new image has the same number of sectors as the original image"
	}

	count := r.Diff
	comparison := "more"
	if count < 0 {
		count = -count
		comparison = "fewer"
	}

	noun := "sectors"
	if count == 1 {
		noun = "sector"
	}

	return fmt.Sprintf("the new image has %d %s %s than the original image", count, comparison, noun)
}
