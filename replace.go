// Package umdreplace replaces a file inside a PSP UMD or PS2 ISO9660 image, moving everything recorded after it when
// the file changes size.
package umdreplace

import (
	"errors"
	"fmt"
	"github.com/davejbax/go-umdreplace/internal/encode"
	"github.com/davejbax/go-umdreplace/internal/sector"
	"github.com/davejbax/go-umdreplace/internal/spec"
	"github.com/sirupsen/logrus"
	"io"
	"math"
	"os"
	"path/filepath"
)

const (
	// DefaultTempName is the name of the image built alongside the original when a replacement changes the number of
	// sectors a file occupies.
	DefaultTempName = "umd-replace.$"

	// DefaultChunkSectors is the number of sectors copied at once while rebuilding an image.
	DefaultChunkSectors = 16384
)

var (
	ErrReplacementTooLarge   = errors.New("replacement file is too large for an ISO9660 file")
	ErrReplacementChanged    = errors.New("replacement file changed size while it was being copied")
	ErrTemporaryImageIsImage = errors.New("temporary image would overwrite the image being patched")
)

// Options configure a [Replacer]. The zero value is usable: every field has a default.
type Options struct {
	// Geometry is the sector layout of the images being patched. Defaults to [sector.Mode0].
	Geometry sector.Geometry

	// TempName is the file name of the rebuilt image, which is created in the same directory as the original.
	// Defaults to [DefaultTempName].
	TempName string

	// ChunkSectors is the number of sectors copied at once while rebuilding. Defaults to [DefaultChunkSectors].
	ChunkSectors int64

	// Verify reads the replaced file back through an independent ISO9660 reader once the image has been patched.
	Verify bool

	// Logger receives progress messages. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

type Replacer struct {
	geometry     sector.Geometry
	tempName     string
	chunkSectors int64
	verify       bool
	log          logrus.FieldLogger
}

func NewReplacer(opts Options) (*Replacer, error) {
	r := &Replacer{
		geometry:     opts.Geometry,
		tempName:     opts.TempName,
		chunkSectors: opts.ChunkSectors,
		verify:       opts.Verify,
		log:          opts.Logger,
	}

	if r.geometry == (sector.Geometry{}) {
		r.geometry = sector.Mode0
	}

	if err := r.geometry.Validate(); err != nil {
		return nil, err
	}

	if r.tempName == "" {
		r.tempName = DefaultTempName
	}

	if r.chunkSectors <= 0 {
		r.chunkSectors = DefaultChunkSectors
	}

	if r.log == nil {
		r.log = logrus.StandardLogger()
	}

	return r, nil
}

// Replace overwrites the contents of the file at pathInImage inside the image at imagePath with the contents of the
// file at replacementPath.
//
// When the replacement occupies as many sectors as the original, the image is patched in place. Otherwise a new image
// is assembled next to the original, every sector reference after the file is shifted by the difference, and the new
// image is renamed over the original.
func (r *Replacer) Replace(imagePath string, pathInImage string, replacementPath string) (*Result, error) {
	image := sector.NewImage(imagePath, r.geometry)

	vol, err := readVolume(image)
	if err != nil {
		return nil, fmt.Errorf("could not read image '%s': %w", imagePath, err)
	}
	r.log.WithFields(vol.fields()).Debug("read primary volume descriptor")

	replacement, err := os.Stat(replacementPath)
	if err != nil {
		return nil, fmt.Errorf("could not read replacement file: %w", err)
	}

	if replacement.Size() > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrReplacementTooLarge, replacement.Size())
	}

	match, err := Search(image, pathInImage, vol.rootLocation, vol.rootLength)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Path:       match.Path,
		Location:   match.Record.ExtentLocation.LittleValue(),
		OldSize:    match.Record.DataLength.LittleValue(),
		NewSize:    uint32(replacement.Size()),
		NewSectors: r.geometry.SectorsFor(replacement.Size()),
	}
	result.OldSectors = r.geometry.SectorsFor(int64(result.OldSize))
	result.Diff = result.NewSectors - result.OldSectors

	r.log.WithFields(logrus.Fields{
		"path":       result.Path,
		"location":   result.Location,
		"oldSize":    result.OldSize,
		"newSize":    result.NewSize,
		"diff":       result.Diff,
		"recordedAt": match.Record.RecordingDateAndTime.Time(),
	}).Info("found file in image")

	if result.Diff == 0 {
		err = r.replaceInPlace(image, match, result, replacementPath)
	} else {
		err = r.rebuild(image, vol, match, result, replacementPath)
	}
	if err != nil {
		return nil, err
	}

	if r.verify {
		r.log.Info("verifying replaced file")
		if err := Verify(imagePath, result.Path, replacementPath); err != nil {
			return result, err
		}
	}

	r.log.Info(result.Summary())
	if result.Diff != 0 {
		r.log.Warn("sector addresses have changed: a cuesheet for this image may need updating by hand")
	}

	return result, nil
}

func (r *Replacer) replaceInPlace(image *sector.Image, match *Match, result *Result, replacementPath string) error {
	r.log.WithField("sectors", result.NewSectors).Info("updating file data")

	if err := image.Update(int64(result.Location), func(w *sector.Writer) error {
		if err := writeFile(w, replacementPath, int64(result.NewSize)); err != nil {
			return err
		}

		return w.Expect(int64(result.Location) + result.NewSectors)
	}); err != nil {
		return fmt.Errorf("could not write file data: %w", err)
	}

	if result.NewSize != result.OldSize {
		r.log.Info("updating file size")
		if err := writeFileSize(image, match.Offset, result.NewSize); err != nil {
			return err
		}
	}

	return nil
}

func (r *Replacer) rebuild(image *sector.Image, vol *volume, match *Match, result *Result, replacementPath string) error {
	tempImage := sector.NewImage(filepath.Join(filepath.Dir(image.Path()), r.tempName), r.geometry)
	oldEnd := int64(result.Location) + result.OldSectors

	if same, err := samePath(tempImage.Path(), image.Path()); err != nil {
		return err
	} else if same {
		return fmt.Errorf("%w: '%s'", ErrTemporaryImageIsImage, image.Path())
	}

	r.log.WithField("path", tempImage.Path()).Info("creating temporary image")
	err := tempImage.Create(func(w *sector.Writer) error {
		r.log.WithField("sectors", result.Location).Info("updating previous data sectors")
		if err := r.copySectors(image, w, 0, int64(result.Location)); err != nil {
			return err
		}

		r.log.WithField("sectors", result.NewSectors).Info("updating file data")
		if err := writeFile(w, replacementPath, int64(result.NewSize)); err != nil {
			return err
		}

		if err := w.Expect(int64(result.Location) + result.NewSectors); err != nil {
			return err
		}

		r.log.WithField("sectors", max(vol.totalSectors-oldEnd, 0)).Info("updating next data sectors")
		if err := r.copySectors(image, w, oldEnd, vol.totalSectors); err != nil {
			return err
		}

		r.log.WithFields(logrus.Fields{
			"sectors": w.SectorsWritten(),
			"bytes":   w.BytesWritten(),
		}).Debug("wrote temporary image")

		return nil
	})
	if err != nil {
		return fmt.Errorf("could not build temporary image: %w", err)
	}

	// A directory recorded after the file has moved along with everything else, and so has the file's own record
	foundOffset := match.Offset
	if foundLocation, _ := r.geometry.Locate(foundOffset); foundLocation >= oldEnd {
		foundOffset += result.Diff * r.geometry.SectorSize
	}

	if result.NewSize != result.OldSize {
		r.log.Info("updating file size")
		if err := writeFileSize(tempImage, foundOffset, result.NewSize); err != nil {
			return err
		}
	}

	rel := &relocation{
		image:       tempImage,
		log:         r.log,
		oldLocation: result.Location,
		foundOffset: foundOffset,
		diff:        result.Diff,
	}

	r.log.Info("updating primary volume descriptor")
	if err := rel.updateVolumeDescriptor(vol); err != nil {
		return err
	}

	r.log.WithField("tables", len(vol.pathTables)).Info("updating path tables")
	for _, table := range vol.pathTables {
		if err := rel.updatePathTable(table.Location, vol.pathTableSize, table.BigEndian); err != nil {
			return err
		}
	}

	r.log.Info("updating entire TOCs")
	if err := rel.updateTOC(vol.rootLocation, vol.rootLength, 0); err != nil {
		return err
	}

	result.Rebuilt = true
	result.RelocatedRecords = rel.relocatedRecords
	result.RelocatedPathTableEntries = rel.relocatedPathTableEntries

	// Renaming over the original replaces it in one step
	r.log.Info("replacing original image")
	if err := os.Rename(tempImage.Path(), image.Path()); err != nil {
		return fmt.Errorf("could not rename temporary image over '%s': %w", image.Path(), err)
	}

	return nil
}

// copySectors copies sectors [from, to) of src to w, chunkSectors at a time.
func (r *Replacer) copySectors(src *sector.Image, w *sector.Writer, from int64, to int64) error {
	for lba := from; lba < to; {
		count := min(r.chunkSectors, to-lba)

		p, err := src.ReadSectors(lba, count)
		if err != nil {
			return err
		}

		if _, err := w.Write(p); err != nil {
			return err
		}

		lba += count
	}

	return nil
}

// writeFile copies exactly size bytes of the file at path to w. The file must still be size bytes long, since the
// sectors it was given were counted from that size.
func writeFile(w *sector.Writer, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open replacement file: %w", err)
	}
	defer f.Close()

	copied, err := w.ReadFrom(io.LimitReader(f, size))
	if err != nil {
		return fmt.Errorf("could not copy replacement file: %w", err)
	}

	if copied != size {
		return fmt.Errorf("%w: expected %d bytes, read %d", ErrReplacementChanged, size, copied)
	}

	if n, _ := f.Read(make([]byte, 1)); n != 0 {
		return fmt.Errorf("%w: more than %d bytes", ErrReplacementChanged, size)
	}

	return nil
}

func samePath(a string, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("could not resolve '%s': %w", a, err)
	}

	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("could not resolve '%s': %w", b, err)
	}

	if absA == absB {
		return true, nil
	}

	// Catches links, and case-insensitive file systems
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB), nil
}

// writeFileSize rewrites both halves of the data length field of the directory record at offset.
func writeFileSize(image *sector.Image, offset int64, size uint32) error {
	lba, pos := image.Geometry().Locate(offset)

	p, err := image.ReadSectors(lba, 1)
	if err != nil {
		return fmt.Errorf("could not read directory record: %w", err)
	}

	encode.PutUInt32BothByte(p[pos+spec.DirectoryRecordDataLengthOffset:], size)

	if err := image.WriteSectors(lba, p); err != nil {
		return fmt.Errorf("could not write directory record: %w", err)
	}

	return nil
}
