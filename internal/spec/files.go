package spec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/itchio/headway/counter"
	"github.com/lunixbochs/struc"
	"io"
	"iter"
)

// ErrMalformedRecord indicates that a directory or path table record does not fit within the bytes that hold it.
var ErrMalformedRecord = errors.New("malformed record")

// FileIdentifier is the name recorded in a directory record or path table record. For files it combines the name,
// the extension and a ';' version suffix, as in "EBOOT.BIN;1"; directories carry a bare name.
//
// ECMA-119 (5th ed.) §7.5, §7.6
type FileIdentifier []uint8

var (
	// FileIdentifierSelf names the root directory and the '.' entry of every directory
	FileIdentifierSelf = FileIdentifier{0x00}

	// FileIdentifierParent names the '..' entry of every directory
	FileIdentifierParent = FileIdentifier{0x01}
)

// IsSelfOrParent reports whether the identifier is one of the '.' or '..' pseudo-entries present at the start of
// every directory.
func (f FileIdentifier) IsSelfOrParent() bool {
	return len(f) == 1 && (f[0] == FileIdentifierSelf[0] || f[0] == FileIdentifierParent[0])
}

type FileFlag uint8

const (
	FileFlagHidden         FileFlag = 0x01
	FileFlagDirectory      FileFlag = 0x02
	FileFlagAssociatedFile FileFlag = 0x04
	FileFlagRecord         FileFlag = 0x08
	FileFlagProtection     FileFlag = 0x10
	FileFlagMultiExtent    FileFlag = 0x80
)

// Byte offsets of the fields of a [DirectoryRecord] that get patched in place.
//
// ECMA-119 (5th ed.) §10.1
const (
	DirectoryRecordExtentLocationOffset = 2
	DirectoryRecordDataLengthOffset     = 10
	DirectoryRecordFileFlagsOffset      = 25
	DirectoryRecordIdentifierOffset     = 33
)

// DirectoryRecord describes one file or subdirectory: where its extent starts, how many bytes it holds and what it
// is called. Records are decoded with [ReadDirectoryRecord] and encoded with [DirectoryRecord.WriteTo].
//
// ECMA-119 (5th ed.) §10.1
type DirectoryRecord struct {
	Length                        uint8
	ExtendedAttributeRecordLength uint8
	ExtentLocation                UInt32BothByte
	DataLength                    UInt32BothByte
	RecordingDateAndTime          DateTime
	FileFlags                     FileFlag
	FileUnitSize                  uint8
	InterleaveGapSize             uint8
	VolumeSequenceNumber          UInt16BothByte
	LengthOfFileIdentifier        uint8 `struc:"sizeof=FileIdentifier"`
	FileIdentifier                FileIdentifier
}

// Ensure DirectoryRecord implements [io.WriterTo]
var _ io.WriterTo = &DirectoryRecord{}

func (d DirectoryRecord) WriteTo(w io.Writer) (int64, error) {
	cw := counter.NewWriter(w)
	if err := struc.Pack(cw, &d); err != nil {
		return cw.Count(), fmt.Errorf("failed to pack directory record: %w", err)
	}

	// Pad up to Length, which counts the padding byte after an even length identifier
	if remainder := int64(d.Length) - cw.Count(); remainder > 0 {
		if _, err := cw.Write(make([]byte, remainder)); err != nil {
			return cw.Count(), fmt.Errorf("failed to pad directory record: %w", err)
		}
	}

	return cw.Count(), nil
}

// IsDir reports whether the record describes a directory rather than a file.
func (d *DirectoryRecord) IsDir() bool {
	return d.FileFlags&FileFlagDirectory != 0
}

// ReadDirectoryRecord decodes the directory record at the start of p. The record must fit within p entirely; any
// system use bytes following the file identifier are ignored.
func ReadDirectoryRecord(p []byte) (*DirectoryRecord, error) {
	if len(p) < baseDirectoryRecordSize || int(p[0]) > len(p) {
		return nil, fmt.Errorf("%w: directory record is truncated", ErrMalformedRecord)
	}

	length := int(p[0])
	if length < baseDirectoryRecordSize || baseDirectoryRecordSize+int(p[baseDirectoryRecordSize-1]) > length {
		return nil, fmt.Errorf("%w: directory record length %d cannot hold its identifier", ErrMalformedRecord, length)
	}

	record := &DirectoryRecord{}
	if err := struc.Unpack(bytes.NewReader(p[:length]), record); err != nil {
		return nil, fmt.Errorf("failed to unpack directory record: %w", err)
	}

	return record, nil
}

// baseDirectoryRecordSize is the size of a directory record up to and including the identifier length byte.
const baseDirectoryRecordSize = 33

// DirectoryRecordLength is the length of a [DirectoryRecord] with no system use bytes, whose identifier is
// fileIdentifierLength bytes long. Records are always an even number of bytes.
func DirectoryRecordLength(fileIdentifierLength int) uint8 {
	return uint8(baseDirectoryRecordSize + fileIdentifierLength + (fileIdentifierLength+1)%2)
}

// PathTableRecord is one entry of a path table: the extent of a directory, and the number of its parent's entry.
// The same record is stored little endian in L tables and big endian in M tables; the byte order is chosen through
// [struc.Options] when packing or unpacking.
//
// ECMA-119 (5th ed.) §7.10
type PathTableRecord struct {
	LengthOfDirectoryIdentifier   uint8 `struc:"sizeof=DirectoryIdentifier"`
	ExtendedAttributeRecordLength uint8
	LocationOfExtent              uint32
	ParentDirectoryNumber         uint16
	DirectoryIdentifier           FileIdentifier
}

const basePathTableRecordSize = 8

// PathTableRecordLength is the number of bytes a path table record with the given identifier length occupies,
// including the padding byte that keeps records at even lengths.
func PathTableRecordLength(directoryIdentifierLength int) int {
	return basePathTableRecordSize + directoryIdentifierLength + directoryIdentifierLength%2
}

// ReadPathTableRecord decodes the path table record at the start of p using the byte order of the table it belongs
// to.
func ReadPathTableRecord(p []byte, bigEndian bool) (*PathTableRecord, error) {
	if len(p) < basePathTableRecordSize || basePathTableRecordSize+int(p[0]) > len(p) {
		return nil, fmt.Errorf("%w: path table record is truncated", ErrMalformedRecord)
	}

	record := &PathTableRecord{}
	if err := struc.UnpackWithOptions(bytes.NewReader(p), record, &struc.Options{Order: pathTableByteOrder(bigEndian)}); err != nil {
		return nil, fmt.Errorf("failed to unpack path table record: %w", err)
	}

	return record, nil
}

// MPathTable encodes records as a big endian path table.
//
// ECMA-119 (5th ed.) §9.4.17
type MPathTable iter.Seq[*PathTableRecord]

func (p MPathTable) WriteTo(w io.Writer) (int64, error) {
	return writePathTable(w, iter.Seq[*PathTableRecord](p), true)
}

// LPathTable encodes records as a little endian path table.
//
// ECMA-119 (5th ed.) §9.4.15
type LPathTable iter.Seq[*PathTableRecord]

func (p LPathTable) WriteTo(w io.Writer) (int64, error) {
	return writePathTable(w, iter.Seq[*PathTableRecord](p), false)
}

// PathTable returns the path table encoder for the given byte order.
func PathTable(records iter.Seq[*PathTableRecord], bigEndian bool) io.WriterTo {
	if bigEndian {
		return MPathTable(records)
	}

	return LPathTable(records)
}

func pathTableByteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

func writePathTable(w io.Writer, records iter.Seq[*PathTableRecord], bigEndian bool) (int64, error) {
	cw := counter.NewWriter(w)
	options := &struc.Options{Order: pathTableByteOrder(bigEndian)}

	for record := range records {
		if err := struc.PackWithOptions(cw, record, options); err != nil {
			return cw.Count(), fmt.Errorf("failed to encode path table record: %w", err)
		}

		// Odd length identifiers are followed by a padding byte
		if record.LengthOfDirectoryIdentifier%2 == 1 {
			if _, err := cw.Write([]byte{0}); err != nil {
				return cw.Count(), fmt.Errorf("failed to write padding byte: %w", err)
			}
		}
	}

	return cw.Count(), nil
}
