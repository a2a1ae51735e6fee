// Package enhancer decodes images, applies named filters and re-encodes the result.
package enhancer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

// Filter names accepted by Apply.
const (
	FilterDenoise    = "denoise"
	FilterBrightness = "brightness"
	FilterContrast   = "contrast"
	FilterSharpen    = "sharpen"
	FilterGrayscale  = "grayscale"
	FilterBlur       = "blur"
	FilterAuto       = "auto"
	FilterResize     = "resize"
)

// Format is an encoded image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// DefaultMaxPixels bounds the decoded size of an image (width*height).
const DefaultMaxPixels = 40_000_000

var (
	// ErrDecode is returned when the input bytes are not a decodable image.
	ErrDecode = errors.New("decode image")
	// ErrTooLarge is returned when the image header declares more pixels than allowed.
	ErrTooLarge = errors.New("image dimensions too large")
)

// Params carries optional filter arguments. Zero values mean "not set".
type Params struct {
	Width  int
	Height int
}

type filterFunc func(img image.Image, p Params) image.Image

var filters = map[string]filterFunc{
	FilterDenoise:    func(img image.Image, _ Params) image.Image { return denoise(img) },
	FilterBrightness: func(img image.Image, _ Params) image.Image { return imaging.AdjustBrightness(img, 12) },
	FilterContrast:   func(img image.Image, _ Params) image.Image { return imaging.AdjustContrast(img, 50) },
	FilterSharpen:    func(img image.Image, _ Params) image.Image { return sharpen(img) },
	FilterGrayscale:  func(img image.Image, _ Params) image.Image { return imaging.Grayscale(img) },
	FilterBlur:       func(img image.Image, _ Params) image.Image { return imaging.Blur(img, 1.1) },
	FilterAuto:       func(img image.Image, _ Params) image.Image { return auto(img) },
	FilterResize:     resize,
}

// Known reports whether name is one of the supported filters.
func Known(name string) bool {
	_, ok := filters[name]
	return ok
}

// Names returns the supported filter names.
func Names() []string {
	return []string{
		FilterDenoise,
		FilterBrightness,
		FilterContrast,
		FilterSharpen,
		FilterGrayscale,
		FilterBlur,
		FilterAuto,
		FilterResize,
	}
}

// FormatFromExtension maps a file extension (with or without the dot) to a format.
func FormatFromExtension(ext string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	default:
		return "", false
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Extension returns the canonical file extension of the format, with the dot.
func (f Format) Extension() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// Decode parses JPEG or PNG bytes with the default pixel limit.
func Decode(data []byte) (image.Image, Format, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited parses JPEG or PNG bytes and returns the detected format.
// The header is checked first so images over maxPixels are never decoded.
// A non-positive maxPixels disables the check.
func DecodeLimited(data []byte, maxPixels int64) (image.Image, Format, error) {
	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
			return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
		}
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	switch name {
	case "jpeg":
		return img, FormatJPEG, nil
	case "png":
		return img, FormatPNG, nil
	default:
		return nil, "", fmt.Errorf("%w: unsupported format %q", ErrDecode, name)
	}
}

// Encode writes img in the given format.
func Encode(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92})
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Apply runs the named filter. Unknown names return img unchanged and ok=false.
func Apply(img image.Image, name string, p Params) (out image.Image, ok bool) {
	fn, ok := filters[name]
	if !ok {
		return img, false
	}
	return fn(img, p), true
}

func denoise(img image.Image) image.Image {
	// light gaussian smoothing
	return imaging.Blur(img, 0.6)
}

func sharpen(img image.Image) image.Image {
	return imaging.Convolve3x3(img, [9]float64{
		0, -1, 0,
		-1, 5, -1,
		0, -1, 0,
	}, nil)
}

func auto(img image.Image) image.Image {
	out := denoise(img)
	out = imaging.AdjustContrast(out, 20)
	out = imaging.AdjustBrightness(out, 4)
	return sharpen(out)
}

// resize keeps the aspect ratio when only one side is given; no sides means no change.
func resize(img image.Image, p Params) image.Image {
	w, h := p.Width, p.Height
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if w == 0 && h == 0 {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}
