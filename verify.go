package umdreplace

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/diskfs/go-diskfs/backend/file"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"
	"io"
	"os"
	"path"
	"strings"
)

var ErrVerifyMismatch = errors.New("file in image does not match its source")

const verifyChunkSize = 64 * 1024

// Verify reads the file at pathInImage back out of the image with go-diskfs' ISO9660 reader and checks that it holds
// exactly the bytes of the file at sourcePath. pathInImage must be the path as recorded on the disc, such as
// [Result.Path].
func Verify(imagePath string, pathInImage string, sourcePath string) error {
	imageFile, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("could not open image: %w", err)
	}
	defer imageFile.Close()

	info, err := imageFile.Stat()
	if err != nil {
		return fmt.Errorf("could not stat image: %w", err)
	}

	fs, err := iso9660.Read(file.New(imageFile, true), info.Size(), 0, 0)
	if err != nil {
		return fmt.Errorf("could not read image as ISO9660: %w", err)
	}

	inImage, err := fs.OpenFile(diskfsPath(pathInImage), os.O_RDONLY)
	if err != nil {
		return fmt.Errorf("could not open '%s' in image: %w", pathInImage, err)
	}
	defer inImage.Close()

	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("could not open source file: %w", err)
	}
	defer source.Close()

	return compareReaders(inImage, source)
}

// diskfsPath converts a recorded path into the form go-diskfs looks files up by, which drops the dot separating a
// file name from an empty extension.
func diskfsPath(p string) string {
	dir, name := path.Split(p)
	return dir + strings.TrimSuffix(name, ".")
}

func compareReaders(actual io.Reader, expected io.Reader) error {
	actualChunk := make([]byte, verifyChunkSize)
	expectedChunk := make([]byte, verifyChunkSize)
	offset := int64(0)

	for {
		actualRead, actualErr := io.ReadFull(actual, actualChunk)
		expectedRead, expectedErr := io.ReadFull(expected, expectedChunk)

		if actualErr != nil && !errors.Is(actualErr, io.EOF) && !errors.Is(actualErr, io.ErrUnexpectedEOF) {
			return fmt.Errorf("could not read file in image: %w", actualErr)
		}

		if expectedErr != nil && !errors.Is(expectedErr, io.EOF) && !errors.Is(expectedErr, io.ErrUnexpectedEOF) {
			return fmt.Errorf("could not read source file: %w", expectedErr)
		}

		if !bytes.Equal(actualChunk[:actualRead], expectedChunk[:expectedRead]) {
			return fmt.Errorf("%w: contents differ within %d bytes of offset %d", ErrVerifyMismatch, verifyChunkSize, offset)
		}

		if actualRead < verifyChunkSize || expectedRead < verifyChunkSize {
			return nil
		}

		offset += verifyChunkSize
	}
}
