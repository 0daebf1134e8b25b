package sector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrReadPastEnd indicates that a read would extend beyond the end of the image file.
	ErrReadPastEnd = errors.New("read past the end of the image")

	// ErrPartialSector indicates that a write was given a buffer that is not a whole number of sectors.
	ErrPartialSector = errors.New("buffer is not a whole number of sectors")
)

const writeBufferSize = 1 << 20

// Image is a disc image file accessed in whole sectors. Image holds no open file: every operation opens the file,
// performs its transfer, and closes it again.
type Image struct {
	path     string
	geometry Geometry
}

func NewImage(path string, geometry Geometry) *Image {
	return &Image{path: path, geometry: geometry}
}

func (i *Image) Path() string {
	return i.path
}

func (i *Image) Geometry() Geometry {
	return i.geometry
}

// Size is the length of the image file in bytes.
func (i *Image) Size() (int64, error) {
	info, err := os.Stat(i.path)
	if err != nil {
		return 0, fmt.Errorf("could not stat image: %w", err)
	}

	return info.Size(), nil
}

// Sectors is the number of whole sectors held by the image file. A trailing partial sector is not counted.
func (i *Image) Sectors() (int64, error) {
	size, err := i.Size()
	if err != nil {
		return 0, err
	}

	return size / i.geometry.SectorSize, nil
}

// ReadSectors reads count whole sectors starting at sector lba.
func (i *Image) ReadSectors(lba int64, count int64) ([]byte, error) {
	size, err := i.Size()
	if err != nil {
		return nil, err
	}

	offset := lba * i.geometry.SectorSize
	length := count * i.geometry.SectorSize
	if lba < 0 || count < 0 || offset+length > size {
		return nil, fmt.Errorf("%w: sectors %d-%d requested from a %d byte image", ErrReadPastEnd, lba, lba+count, size)
	}

	f, err := os.Open(i.path)
	if err != nil {
		return nil, fmt.Errorf("could not open image: %w", err)
	}
	defer f.Close()

	p := make([]byte, length)
	if _, err := f.ReadAt(p, offset); err != nil {
		return nil, fmt.Errorf("could not read sectors %d-%d: %w", lba, lba+count, err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("could not close image: %w", err)
	}

	return p, nil
}

// WriteSectors overwrites whole sectors starting at sector lba with the contents of p.
func (i *Image) WriteSectors(lba int64, p []byte) error {
	if int64(len(p))%i.geometry.SectorSize != 0 {
		return fmt.Errorf("%w: %d bytes", ErrPartialSector, len(p))
	}

	return i.Update(lba, func(w *Writer) error {
		_, err := w.Write(p)
		return err
	})
}

// Update opens the existing image for writing and hands fn a [Writer] positioned at sector lba.
func (i *Image) Update(lba int64, fn func(w *Writer) error) error {
	return i.withFile(os.O_WRONLY, lba, fn)
}

// Create creates the image, truncating it if it already exists, and hands fn a [Writer] positioned at sector 0.
func (i *Image) Create(fn func(w *Writer) error) error {
	return i.withFile(os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0, fn)
}

func (i *Image) withFile(flag int, lba int64, fn func(w *Writer) error) error {
	f, err := os.OpenFile(i.path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("could not open image for writing: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(lba*i.geometry.SectorSize, io.SeekStart); err != nil {
		return fmt.Errorf("could not seek to sector %d: %w", lba, err)
	}

	buffered := bufio.NewWriterSize(f, writeBufferSize)
	if err := fn(NewWriter(buffered, i.geometry, lba)); err != nil {
		return err
	}

	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("could not write image: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("could not close image: %w", err)
	}

	return nil
}
