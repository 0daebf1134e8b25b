package umdreplace

import (
	"bytes"
	"github.com/davejbax/go-umdreplace/internal/encode"
	"github.com/davejbax/go-umdreplace/internal/sector"
	"github.com/davejbax/go-umdreplace/internal/spec"
	"github.com/lunixbochs/struc"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

const testSectorSize = 2048

var testRecordingTime = time.Date(2006, time.March, 14, 9, 30, 0, 0, time.UTC)

// testImage assembles a Mode 0 image in memory, one sector at a time.
type testImage struct {
	t    *testing.T
	data []byte

	// offsets holds the absolute offset of every directory record written so far, keyed by the directory's location
	// and the record's identifier.
	offsets map[uint32]map[string]int64
}

func newTestImage(t *testing.T, sectors uint32) *testImage {
	return &testImage{
		t:       t,
		data:    make([]byte, int(sectors)*testSectorSize),
		offsets: make(map[uint32]map[string]int64),
	}
}

func (b *testImage) put(lba uint32, p []byte) {
	require.LessOrEqual(b.t, int(lba)*testSectorSize+len(p), len(b.data), "test data should fit within the image")
	copy(b.data[int(lba)*testSectorSize:], p)
}

func testRecord(name string, location uint32, size uint32, dir bool) spec.DirectoryRecord {
	identifier := spec.FileIdentifier(name)

	flags := spec.FileFlag(0)
	if dir {
		flags = spec.FileFlagDirectory
	}

	return spec.DirectoryRecord{
		Length:                 spec.DirectoryRecordLength(len(identifier)),
		ExtentLocation:         encode.AsUInt32BothByte(location),
		DataLength:             encode.AsUInt32BothByte(size),
		RecordingDateAndTime:   spec.NewDateTime(testRecordingTime),
		FileFlags:              flags,
		VolumeSequenceNumber:   encode.AsUInt16BothByte(1),
		LengthOfFileIdentifier: uint8(len(identifier)),
		FileIdentifier:         identifier,
	}
}

// directory writes a single sector directory at lba, preceded by its '.' and '..' entries.
func (b *testImage) directory(lba uint32, parent uint32, records ...spec.DirectoryRecord) {
	b.directorySectors(lba, parent, records)
}

// directorySectors writes a directory spanning one sector per group of records, starting at lba. The first sector
// begins with the '.' and '..' entries.
func (b *testImage) directorySectors(lba uint32, parent uint32, sectors ...[]spec.DirectoryRecord) {
	offsets := make(map[string]int64)

	for i, records := range sectors {
		if i == 0 {
			records = append([]spec.DirectoryRecord{
				testRecord("\x00", lba, uint32(len(sectors))*testSectorSize, true),
				testRecord("\x01", parent, testSectorSize, true),
			}, records...)
		}

		current := lba + uint32(i)
		var buf bytes.Buffer

		for _, record := range records {
			offsets[string(record.FileIdentifier)] = int64(current)*testSectorSize + int64(buf.Len())

			_, err := record.WriteTo(&buf)
			require.NoError(b.t, err)
		}

		require.LessOrEqual(b.t, buf.Len(), testSectorSize, "records should fit in one directory sector")
		b.put(current, buf.Bytes())
	}

	b.offsets[lba] = offsets
}

func (b *testImage) file(lba uint32, content []byte) {
	b.put(lba, content)
}

// volumeDescriptors writes the primary volume descriptor and terminator at sectors 16 and 17, and the L and M path
// tables at sectors 18 and 19.
func (b *testImage) volumeDescriptors(rootLocation uint32, directories ...*spec.PathTableRecord) {
	records := append([]*spec.PathTableRecord{{
		LengthOfDirectoryIdentifier: 1,
		LocationOfExtent:            rootLocation,
		ParentDirectoryNumber:       1,
		DirectoryIdentifier:         spec.FileIdentifierSelf,
	}}, directories...)

	var lTable, mTable bytes.Buffer
	_, err := spec.LPathTable(slices.Values(records)).WriteTo(&lTable)
	require.NoError(b.t, err)

	_, err = spec.MPathTable(slices.Values(records)).WriteTo(&mTable)
	require.NoError(b.t, err)

	pvd := &spec.PrimaryVolumeDescriptor{
		Header: spec.VolumeDescriptor{
			Kind:                    spec.VolumeDescriptorTypePrimary,
			StandardIdentifier:      spec.StandardIdentifier,
			VolumeDescriptorVersion: 1,
		},
		VolumeSpaceSize:            encode.AsUInt32BothByte(uint32(len(b.data) / testSectorSize)),
		VolumeSetSize:              encode.AsUInt16BothByte(1),
		VolumeSequenceNumber:       encode.AsUInt16BothByte(1),
		LogicalBlockSize:           encode.AsUInt16BothByte(testSectorSize),
		PathTableSize:              encode.AsUInt32BothByte(uint32(lTable.Len())),
		LocationTypeLPathTable:     18,
		LocationTypeMPathTable:     19,
		RootDirectoryRecord:        testRecord("\x00", rootLocation, testSectorSize, true),
		VolumeCreationDateTime:     spec.UnsetLongDateTime,
		VolumeModificationDateTime: spec.UnsetLongDateTime,
		VolumeExpirationDateTime:   spec.UnsetLongDateTime,
		VolumeEffectiveDateTime:    spec.UnsetLongDateTime,
		FileStructureVersion:       spec.FileStructureVersionPrimary,
	}
	spec.PutCharacters(pvd.SystemIdentifier[:], "PSP GAME")
	spec.PutCharacters(pvd.VolumeIdentifier[:], "UMD_TEST")

	var descriptor bytes.Buffer
	_, err = pvd.WriteTo(&descriptor)
	require.NoError(b.t, err)
	require.Equal(b.t, testSectorSize, descriptor.Len(), "primary volume descriptor should occupy one sector")

	var terminator bytes.Buffer
	require.NoError(b.t, struc.Pack(&terminator, spec.TerminatorVolumeDescriptor))

	b.put(spec.PrimaryVolumeDescriptorLocation, descriptor.Bytes())
	b.put(spec.PrimaryVolumeDescriptorLocation+1, terminator.Bytes())
	b.put(18, lTable.Bytes())
	b.put(19, mTable.Bytes())
}

func (b *testImage) save() string {
	path := filepath.Join(b.t.TempDir(), "game.iso")
	require.NoError(b.t, os.WriteFile(path, b.data, 0o644))

	return path
}

func testPathTableRecord(name string, location uint32, parent uint16) *spec.PathTableRecord {
	return &spec.PathTableRecord{
		LengthOfDirectoryIdentifier: uint8(len(name)),
		LocationOfExtent:            location,
		ParentDirectoryNumber:       parent,
		DirectoryIdentifier:         spec.FileIdentifier(name),
	}
}

// standardImage is the layout most replacement tests start from:
//
//	16      primary volume descriptor
//	17      terminator
//	18, 19  L and M path tables
//	20      root directory: A.BIN, B_EMPTY.BIN, FOO/, TARGET.BIN, Z.BIN
//	21      A.BIN (3000 bytes)
//	23      TARGET.BIN, and the empty B_EMPTY.BIN recorded before it
//	23+t    FOO/, where t is the number of sectors TARGET.BIN occupies
//	24+t    FOO/BAR.BIN (10 bytes)
//	25+t    Z.BIN (100 bytes)
type standardImage struct {
	path    string
	offsets map[string]int64

	locationFoo uint32
	locationBar uint32
	locationZ   uint32
	total       uint32

	contentA      []byte
	contentTarget []byte
	contentBar    []byte
	contentZ      []byte
}

const (
	standardRootLocation   = 20
	standardLocationA      = 21
	standardLocationTarget = 23
)

func newStandardImage(t *testing.T, targetSize int) *standardImage {
	targetSectors := uint32((targetSize + testSectorSize - 1) / testSectorSize)

	s := &standardImage{
		locationFoo:   standardLocationTarget + targetSectors,
		locationBar:   standardLocationTarget + targetSectors + 1,
		locationZ:     standardLocationTarget + targetSectors + 2,
		total:         standardLocationTarget + targetSectors + 3,
		contentA:      bytes.Repeat([]byte{'a'}, 3000),
		contentTarget: bytes.Repeat([]byte{'t'}, targetSize),
		contentBar:    []byte("bar data!\n"),
		contentZ:      bytes.Repeat([]byte{'z'}, 100),
	}

	b := newTestImage(t, s.total)
	b.volumeDescriptors(standardRootLocation, testPathTableRecord("FOO", s.locationFoo, 1))
	b.directory(standardRootLocation, standardRootLocation,
		testRecord("A.BIN;1", standardLocationA, uint32(len(s.contentA)), false),
		testRecord("B_EMPTY.BIN;1", standardLocationTarget, 0, false),
		testRecord("FOO", s.locationFoo, testSectorSize, true),
		testRecord("TARGET.BIN;1", standardLocationTarget, uint32(targetSize), false),
		testRecord("Z.BIN;1", s.locationZ, uint32(len(s.contentZ)), false),
	)
	b.directory(s.locationFoo, standardRootLocation,
		testRecord("BAR.BIN;1", s.locationBar, uint32(len(s.contentBar)), false),
	)
	b.file(standardLocationA, s.contentA)
	b.file(standardLocationTarget, s.contentTarget)
	b.file(s.locationBar, s.contentBar)
	b.file(s.locationZ, s.contentZ)

	s.path = b.save()
	s.offsets = b.offsets[standardRootLocation]
	s.offsets["BAR.BIN;1"] = b.offsets[s.locationFoo]["BAR.BIN;1"]

	return s
}

// multiSectorImage holds a directory whose extent is two sectors long:
//
//	20      root directory: BIG/, Z.BIN
//	21, 22  BIG/, with EARLY.BIN recorded in its first sector and LATE.BIN in its second
//	23      BIG/EARLY.BIN (100 bytes)
//	24      BIG/LATE.BIN (10 bytes)
//	25      Z.BIN (100 bytes)
type multiSectorImage struct {
	path    string
	offsets map[string]int64
}

const (
	multiSectorLocationBig   = 21
	multiSectorLocationEarly = 23
	multiSectorLocationLate  = 24
	multiSectorLocationZ     = 25
)

func newMultiSectorImage(t *testing.T) *multiSectorImage {
	b := newTestImage(t, 26)
	b.volumeDescriptors(20, testPathTableRecord("BIG", multiSectorLocationBig, 1))
	b.directory(20, 20,
		testRecord("BIG", multiSectorLocationBig, 2*testSectorSize, true),
		testRecord("Z.BIN;1", multiSectorLocationZ, 100, false),
	)
	b.directorySectors(multiSectorLocationBig, 20,
		[]spec.DirectoryRecord{testRecord("EARLY.BIN;1", multiSectorLocationEarly, 100, false)},
		[]spec.DirectoryRecord{testRecord("LATE.BIN;1", multiSectorLocationLate, 10, false)},
	)
	b.file(multiSectorLocationEarly, bytes.Repeat([]byte{'e'}, 100))
	b.file(multiSectorLocationLate, []byte("late data\n"))
	b.file(multiSectorLocationZ, bytes.Repeat([]byte{'z'}, 100))

	m := &multiSectorImage{path: b.save(), offsets: b.offsets[multiSectorLocationBig]}
	m.offsets["BIG"] = b.offsets[20]["BIG"]
	m.offsets["Z.BIN;1"] = b.offsets[20]["Z.BIN;1"]

	return m
}

func writeTestFile(t *testing.T, content []byte) string {
	path := filepath.Join(t.TempDir(), "replacement.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

func newTestReplacer(t *testing.T, opts Options) (*Replacer, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts.Logger = logger

	r, err := NewReplacer(opts)
	require.NoError(t, err)

	return r, hook
}

// readRecordAt decodes the directory record at an absolute offset of a Mode 0 image.
func readRecordAt(t *testing.T, path string, offset int64) *spec.DirectoryRecord {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Less(t, offset, int64(len(data)))

	record, err := spec.ReadDirectoryRecord(data[offset:])
	require.NoError(t, err)
	require.True(t, record.ExtentLocation.Consistent(), "both halves of the extent location should agree")
	require.True(t, record.DataLength.Consistent(), "both halves of the data length should agree")

	return record
}

func readTestSectors(t *testing.T, path string, lba uint32, count int64) []byte {
	p, err := sector.NewImage(path, sector.Mode0).ReadSectors(int64(lba), count)
	require.NoError(t, err)

	return p
}

func readPathTable(t *testing.T, path string, location uint32, bigEndian bool) []*spec.PathTableRecord {
	p := readTestSectors(t, path, location, 1)

	var records []*spec.PathTableRecord
	for pos := 0; p[pos] != 0; {
		record, err := spec.ReadPathTableRecord(p[pos:], bigEndian)
		require.NoError(t, err)

		records = append(records, record)
		pos += spec.PathTableRecordLength(len(record.DirectoryIdentifier))
	}

	return records
}
