package umdreplace

import (
	"encoding/binary"
	"fmt"
	"github.com/davejbax/go-umdreplace/internal/encode"
	"github.com/davejbax/go-umdreplace/internal/sector"
	"github.com/davejbax/go-umdreplace/internal/spec"
	"github.com/sirupsen/logrus"
)

// volume is the geometry of an image, as read from its primary volume descriptor and from the length of the file.
type volume struct {
	identifier string

	// claimedSectors is the volume space size recorded in the descriptor. It may disagree with totalSectors.
	claimedSectors uint32

	// totalSectors is the number of whole sectors actually present in the image file.
	totalSectors int64

	rootLocation  uint32
	rootLength    uint32
	pathTableSize uint32
	pathTables    []spec.PathTableLocation
}

func readVolume(image *sector.Image) (*volume, error) {
	p, err := image.ReadSectors(spec.PrimaryVolumeDescriptorLocation, 1)
	if err != nil {
		return nil, fmt.Errorf("could not read primary volume descriptor: %w", err)
	}

	pvd, err := spec.ReadPrimaryVolumeDescriptor(image.Geometry().Data(p, 0))
	if err != nil {
		return nil, err
	}

	total, err := image.Sectors()
	if err != nil {
		return nil, err
	}

	return &volume{
		identifier:     spec.Characters(pvd.VolumeIdentifier[:]),
		claimedSectors: pvd.VolumeSpaceSize.LittleValue(),
		totalSectors:   total,
		rootLocation:   pvd.RootDirectoryRecord.ExtentLocation.LittleValue(),
		rootLength:     pvd.RootDirectoryRecord.DataLength.LittleValue(),
		pathTableSize:  pvd.PathTableSize.LittleValue(),
		pathTables:     pvd.PathTables(),
	}, nil
}

func (v *volume) fields() logrus.Fields {
	return logrus.Fields{
		"volume":         v.identifier,
		"claimedSectors": v.claimedSectors,
		"totalSectors":   v.totalSectors,
		"rootLocation":   v.rootLocation,
		"rootLength":     v.rootLength,
		"pathTables":     len(v.pathTables),
	}
}

// updateVolumeDescriptor rewrites the volume space size of the rebuilt image, and relocates the path table and root
// directory locations recorded in the descriptor if they lie after the replaced file. The in-memory volume is updated
// to match, so that the path tables and directory tree can then be found at their new locations.
func (r *relocation) updateVolumeDescriptor(v *volume) error {
	p, err := r.image.ReadSectors(spec.PrimaryVolumeDescriptorLocation, 1)
	if err != nil {
		return fmt.Errorf("could not read primary volume descriptor: %w", err)
	}

	data := r.image.Geometry().Data(p, 0)

	v.claimedSectors = r.moved(v.claimedSectors)
	encode.PutUInt32BothByte(data[spec.VolumeSpaceSizeOffset:], v.claimedSectors)

	for i := 0; i < 4; i++ {
		offset := spec.LocationTypeLPathTableOffset + 4*i

		var order binary.ByteOrder = binary.LittleEndian
		if i >= 2 {
			order = binary.BigEndian
		}

		if location := order.Uint32(data[offset:]); location != 0 && r.shifts(location) {
			order.PutUint32(data[offset:], r.moved(location))
		}
	}

	for i, table := range v.pathTables {
		if r.shifts(table.Location) {
			v.pathTables[i].Location = r.moved(table.Location)
		}
	}

	if r.shifts(v.rootLocation) {
		v.rootLocation = r.moved(v.rootLocation)
		encode.PutUInt32BothByte(data[spec.RootDirectoryRecordOffset+spec.DirectoryRecordExtentLocationOffset:], v.rootLocation)
	}

	if err := r.image.WriteSectors(spec.PrimaryVolumeDescriptorLocation, p); err != nil {
		return fmt.Errorf("could not write primary volume descriptor: %w", err)
	}

	return nil
}
