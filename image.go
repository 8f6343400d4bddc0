package transform

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"

	"github.com/filestack/transformations-ui-ios-sub001/utils"
)

// DefaultQuality is the jpeg quality used when none is given.
const DefaultQuality = 90

// ErrUnsupportedFormat is returned when encoding to an unknown format.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decode reads an image and returns it as a buffer together with its format name.
func Decode(r io.Reader) (*Buffer, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("could not decode the image: %w", err)
	}
	return NewBuffer(img), format, nil
}

// DecodeFile opens and decodes the image file at path.
func DecodeFile(path string) (*Buffer, error) {
	ctype, err := utils.DetectContentType(path)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(ctype, "image") {
		return nil, fmt.Errorf("%s is not an image file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open the image file: %w", err)
	}
	defer file.Close()

	b, _, err := Decode(file)
	return b, err
}

// FormatOf maps a file name to an encoding format. Names without an
// extension encode as jpeg.
func FormatOf(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case "", ".jpg", ".jpeg":
		return "jpeg", nil
	case ".png":
		return "png", nil
	case ".bmp":
		return "bmp", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
}

// Encode writes b to w in the given format. Quality only applies to jpeg;
// zero selects DefaultQuality.
func Encode(w io.Writer, b *Buffer, format string, quality int) error {
	switch format {
	case "jpeg", "jpg":
		if quality <= 0 {
			quality = DefaultQuality
		}
		return jpeg.Encode(w, b.pix, &jpeg.Options{Quality: utils.Clamp(quality, 1, 100)})
	case "png":
		return png.Encode(w, b.pix)
	case "bmp":
		return bmp.Encode(w, b.pix)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// EncodeFile writes b to path, choosing the format from the extension.
func EncodeFile(path string, b *Buffer, quality int) (err error) {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create the output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return Encode(file, b, format, quality)
}
