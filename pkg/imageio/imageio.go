// Package imageio reads and writes the image formats patchaug understands.
//
// PNG, JPEG, GIF, BMP and TIFF can be decoded and encoded. WebP can only be
// decoded; augmenting a WebP image produces PNG unless another format is
// requested.
package imageio

import (
	"bytes"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/patchaug/pkg/errors"

	// Decoders register themselves with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Supported output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 95

var encoders = map[string]imaging.Format{
	FormatPNG:  imaging.PNG,
	FormatJPEG: imaging.JPEG,
	FormatGIF:  imaging.GIF,
	FormatBMP:  imaging.BMP,
	FormatTIFF: imaging.TIFF,
}

var contentTypes = map[string]string{
	FormatPNG:  "image/png",
	FormatJPEG: "image/jpeg",
	FormatGIF:  "image/gif",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",
}

// Formats returns the supported output formats in sorted order.
func Formats() []string {
	out := make([]string, 0, len(encoders))
	for f := range encoders {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// NormalizeFormat lower-cases format and maps aliases ("jpg", "tif") to
// their canonical names.
func NormalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	switch f {
	case "jpg":
		return FormatJPEG
	case "tif":
		return FormatTIFF
	}
	return f
}

// ValidateFormat returns the canonical name of format or an INVALID_FORMAT
// error if it cannot be encoded.
func ValidateFormat(format string) (string, error) {
	f := NormalizeFormat(format)
	if _, ok := encoders[f]; !ok {
		return "", errors.New(errors.ErrCodeInvalidFormat,
			"unsupported output format %q (must be one of: %s)", format, strings.Join(Formats(), ", "))
	}
	return f, nil
}

// FormatFromPath derives the output format from the file extension.
func FormatFromPath(path string) (string, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", errors.New(errors.ErrCodeInvalidFormat, "cannot infer image format from %q", path)
	}
	return ValidateFormat(ext)
}

// OutputFormat picks the format to encode an image decoded as input:
// requested if non-empty, else input, falling back to PNG when input cannot
// be encoded.
func OutputFormat(requested, input string) (string, error) {
	if requested != "" {
		return ValidateFormat(requested)
	}
	if f, err := ValidateFormat(input); err == nil {
		return f, nil
	}
	return FormatPNG, nil
}

// ContentType returns the MIME type for a canonical format name.
func ContentType(format string) string {
	if ct, ok := contentTypes[NormalizeFormat(format)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Decode reads an image and reports the name of its format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "decode image")
	}
	return img, format, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New(errors.ErrCodeInvalidInput, "image data is empty")
	}
	return Decode(bytes.NewReader(data))
}

// Encode writes img to w in format. quality applies to JPEG only; values
// outside [1, 100] select DefaultQuality.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	f, err := ValidateFormat(format)
	if err != nil {
		return err
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	if err := imaging.Encode(w, img, encoders[f], imaging.JPEGQuality(quality)); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", f)
	}
	return nil
}

// EncodeBytes is Encode into a new buffer.
func EncodeBytes(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFile returns the raw bytes of the image at path.
func ReadFile(path string) ([]byte, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "image %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	return data, nil
}

// Open decodes the image at path.
func Open(path string) (image.Image, string, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	img, format, err := DecodeBytes(data)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	return img, format, nil
}

// Save encodes img to path, choosing the format from its extension and
// creating parent directories as needed.
func Save(img image.Image, path string, quality int) error {
	if err := errors.ValidatePath(path); err != nil {
		return err
	}
	if _, err := FormatFromPath(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create directory for %s", path)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "save %s", path)
	}
	return nil
}

// WriteFile writes already encoded image bytes to path.
func WriteFile(path string, data []byte) error {
	if err := errors.ValidatePath(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}

// IsImagePath reports whether path has an extension Decode understands.
func IsImagePath(path string) bool {
	switch NormalizeFormat(filepath.Ext(path)) {
	case FormatPNG, FormatJPEG, FormatGIF, FormatBMP, FormatTIFF, "webp":
		return true
	}
	return false
}
