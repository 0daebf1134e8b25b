package sector

import (
	"errors"
	"fmt"
	"github.com/itchio/headway/counter"
	"io"
)

// ErrNonSequentialWrite indicates that a writer is not at the sector a caller expected it to have reached.
var ErrNonSequentialWrite = errors.New("writer is not at the expected sector")

// Writer writes sequential sectors to an image, starting from a known sector number. It keeps track of the sector
// the next write lands on, so that callers assembling an image can learn where each piece ended up.
type Writer struct {
	wrapped  *counter.Writer
	geometry Geometry

	start   int64
	current int64
}

func NewWriter(wrapped io.Writer, geometry Geometry, start int64) *Writer {
	return &Writer{
		wrapped:  counter.NewWriter(wrapped),
		geometry: geometry,
		start:    start,
		current:  start,
	}
}

// Write writes raw sectors, which must be whole.
func (w *Writer) Write(p []byte) (int, error) {
	if int64(len(p))%w.geometry.SectorSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrPartialSector, len(p))
	}

	written, err := w.wrapped.Write(p)
	w.current += int64(written) / w.geometry.SectorSize
	if err != nil {
		return written, fmt.Errorf("failed to write sectors: %w", err)
	}

	return written, nil
}

// ReadFrom writes all of r as user data, one sector at a time. The final sector is padded with zeros. The returned
// count is the number of user data bytes consumed from r, not the number of bytes written.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	frame := make([]byte, w.geometry.SectorSize)
	total := int64(0)

	for {
		clear(frame)

		n, err := io.ReadFull(r, w.geometry.Data(frame, 0))
		total += int64(n)

		if n > 0 {
			if _, err := w.Write(frame); err != nil {
				return total, err
			}
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return total, nil
		} else if err != nil {
			return total, fmt.Errorf("failed to read sector data: %w", err)
		}
	}
}

// Expect checks that the next write will land on sector lba.
func (w *Writer) Expect(lba int64) error {
	if w.current != lba {
		return fmt.Errorf("%w: expected sector %d, writer is at sector %d", ErrNonSequentialWrite, lba, w.current)
	}

	return nil
}

// SectorsWritten is the number of sectors written since the writer was created.
func (w *Writer) SectorsWritten() int64 {
	return w.current - w.start
}

// BytesWritten is the number of raw bytes written since the writer was created.
func (w *Writer) BytesWritten() int64 {
	return w.wrapped.Count()
}
