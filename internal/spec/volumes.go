package spec

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/itchio/headway/counter"
	"github.com/lunixbochs/struc"
	"io"
)

// ErrNotISO9660 indicates that a sector expected to hold the primary volume descriptor holds something else.
var ErrNotISO9660 = errors.New("sector does not contain an ISO9660 primary volume descriptor")

var (
	// StandardIdentifier follows the type byte of every volume descriptor: 'CD001'
	//
	// ECMA-119 (5th ed.) §9.1.3
	StandardIdentifier = [5]uint8{0x43, 0x44, 0x30, 0x30, 0x31}
)

// PrimaryVolumeDescriptorLocation is the logical block of the first volume descriptor. The 16 blocks before it form
// the system area.
//
// ECMA-119 (5th ed.) §6.2.1
const PrimaryVolumeDescriptorLocation = 16

// Byte offsets of [PrimaryVolumeDescriptor] fields that get patched in place.
const (
	VolumeSpaceSizeOffset        = 80
	LocationTypeLPathTableOffset = 140
	RootDirectoryRecordOffset    = 156
)

// VolumeDescriptorType is the first byte of every volume descriptor in the set that starts at sector 16.
//
// ECMA-119 (5th ed.) §9.1.2
type VolumeDescriptorType uint8

const (
	VolumeDescriptorTypeBootRecord    VolumeDescriptorType = 0
	VolumeDescriptorTypePrimary       VolumeDescriptorType = 1
	VolumeDescriptorTypeSupplementary VolumeDescriptorType = 2
	VolumeDescriptorTypePartition     VolumeDescriptorType = 3
	VolumeDescriptorTypeTerminator    VolumeDescriptorType = 255
)

// FileStructureVersion is the version of the directory and path table record formats used by a volume.
//
// ECMA-119 (5th ed.) §9.4.31
type FileStructureVersion uint8

const FileStructureVersionPrimary FileStructureVersion = 1

// VolumeDescriptor is the header shared by every volume descriptor.
//
// ECMA-119 (5th ed.) §9
type VolumeDescriptor struct {
	Kind                    VolumeDescriptorType
	StandardIdentifier      [5]uint8
	VolumeDescriptorVersion uint8
}

// PrimaryVolumeDescriptor records the size of the volume and where its root directory and path tables are. It
// occupies exactly one sector and can be both packed and unpacked with [struc].
//
// ECMA-119 (5th ed.) §9.4
type PrimaryVolumeDescriptor struct {
	Header                         VolumeDescriptor
	Unused8                        uint8
	SystemIdentifier               [32]ACharacter
	VolumeIdentifier               [32]DCharacter
	Unused73                       [8]uint8
	VolumeSpaceSize                UInt32BothByte
	Unused89                       [32]uint8
	VolumeSetSize                  UInt16BothByte
	VolumeSequenceNumber           UInt16BothByte
	LogicalBlockSize               UInt16BothByte
	PathTableSize                  UInt32BothByte
	LocationTypeLPathTable         uint32 `struc:"little"`
	LocationTypeLOptionalPathTable uint32 `struc:"little"`
	LocationTypeMPathTable         uint32 `struc:"big"`
	LocationTypeMOptionalPathTable uint32 `struc:"big"`
	RootDirectoryRecord            DirectoryRecord
	VolumeSetIdentifier            [128]DCharacter
	PublisherIdentifier            [128]ACharacter
	DataPreparerIdentifier         [128]DCharacter
	ApplicationIdentifier          [128]ACharacter
	CopyrightFileIdentifier        [37]DCharacter
	AbstractFileIdentifier         [37]DCharacter
	BibliographicFileIdentifier    [37]DCharacter
	VolumeCreationDateTime         LongDateTime
	VolumeModificationDateTime     LongDateTime
	VolumeExpirationDateTime       LongDateTime
	VolumeEffectiveDateTime        LongDateTime
	FileStructureVersion           FileStructureVersion
	Reserved883                    uint8
	ApplicationUse                 [512]uint8
	Reserved1396                   [653]uint8
}

func (p *PrimaryVolumeDescriptor) WriteTo(w io.Writer) (int64, error) {
	cw := counter.NewWriter(w)

	if err := struc.Pack(cw, p); err != nil {
		return cw.Count(), fmt.Errorf("could not pack structure: %w", err)
	}

	return cw.Count(), nil
}

// PathTableLocation is the location of one of the four path tables a primary volume descriptor may declare.
type PathTableLocation struct {
	Location  uint32
	BigEndian bool
}

// PathTables lists the declared path tables, in the order they appear in the descriptor: the L table, the optional L
// table, the M table and the optional M table, each four bytes after the previous. Tables with a location of zero are
// absent and are omitted.
func (p *PrimaryVolumeDescriptor) PathTables() []PathTableLocation {
	all := []PathTableLocation{
		{Location: p.LocationTypeLPathTable},
		{Location: p.LocationTypeLOptionalPathTable},
		{Location: p.LocationTypeMPathTable, BigEndian: true},
		{Location: p.LocationTypeMOptionalPathTable, BigEndian: true},
	}

	tables := make([]PathTableLocation, 0, len(all))
	for _, table := range all {
		if table.Location != 0 {
			tables = append(tables, table)
		}
	}

	return tables
}

// ReadPrimaryVolumeDescriptor decodes the primary volume descriptor held in the user data of its sector.
func ReadPrimaryVolumeDescriptor(p []byte) (*PrimaryVolumeDescriptor, error) {
	pvd := &PrimaryVolumeDescriptor{}
	if err := struc.Unpack(bytes.NewReader(p), pvd); err != nil {
		return nil, fmt.Errorf("could not unpack primary volume descriptor: %w", err)
	}

	if pvd.Header.StandardIdentifier != StandardIdentifier || pvd.Header.Kind != VolumeDescriptorTypePrimary {
		return nil, ErrNotISO9660
	}

	return pvd, nil
}

// TerminatorVolumeDescriptor is a volume descriptor with no payload that signals the end of the volume descriptor set.
//
// ECMA-119 (5th ed.) §9.3
var TerminatorVolumeDescriptor = &VolumeDescriptor{
	Kind:                    VolumeDescriptorTypeTerminator,
	StandardIdentifier:      StandardIdentifier,
	VolumeDescriptorVersion: 1, // Always 1
}
