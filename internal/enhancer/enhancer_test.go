package enhancer

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 30), B: 200, A: 255})
		}
	}
	return img
}

func TestApply_AllFiltersPreserveBounds(t *testing.T) {
	src := testImage(8, 6)
	for _, name := range Names() {
		if name == FilterResize {
			continue
		}
		t.Run(name, func(t *testing.T) {
			out, ok := Apply(src, name, Params{})
			require.True(t, ok)
			assert.Equal(t, src.Bounds().Size(), out.Bounds().Size())
		})
	}
}

func TestApply_Grayscale(t *testing.T) {
	out, ok := Apply(testImage(4, 4), FilterGrayscale, Params{})
	require.True(t, ok)

	r, g, b, _ := out.At(3, 2).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestApply_Resize(t *testing.T) {
	src := testImage(8, 4)

	out, _ := Apply(src, FilterResize, Params{Width: 4})
	assert.Equal(t, image.Pt(4, 2), out.Bounds().Size())

	out, _ = Apply(src, FilterResize, Params{Height: 8})
	assert.Equal(t, image.Pt(16, 8), out.Bounds().Size())

	out, _ = Apply(src, FilterResize, Params{Width: 3, Height: 3})
	assert.Equal(t, image.Pt(3, 3), out.Bounds().Size())

	out, _ = Apply(src, FilterResize, Params{})
	assert.Same(t, src, out)
}

func TestApply_UnknownIsPassThrough(t *testing.T) {
	src := testImage(2, 2)
	out, ok := Apply(src, "sepia", Params{})
	assert.False(t, ok)
	assert.Same(t, src, out)
	assert.False(t, Known("sepia"))
	assert.True(t, Known(FilterBlur))
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(5, 3)))

	img, format, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, format)
	assert.Equal(t, image.Pt(5, 3), img.Bounds().Size())

	jpg, err := Encode(img, FormatJPEG)
	require.NoError(t, err)
	_, format, err = Decode(jpg)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, format)
}

func TestDecode_Corrupt(t *testing.T) {
	_, _, err := Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, ErrDecode)
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h 8-bit grayscale.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 0, 0, 0, 0)

	_ = binary.Write(&buf, binary.BigEndian, uint32(len(chunk)-4))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecode_RejectsOversizedHeader(t *testing.T) {
	_, _, err := Decode(pngHeader(50_000, 50_000))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeLimited(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(20, 20)))

	_, _, err := DecodeLimited(buf.Bytes(), 399)
	assert.ErrorIs(t, err, ErrTooLarge)

	img, format, err := DecodeLimited(buf.Bytes(), 400)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, format)
	assert.Equal(t, image.Pt(20, 20), img.Bounds().Size())

	_, _, err = DecodeLimited(buf.Bytes(), 0)
	assert.NoError(t, err)
}

func TestFormat_Extension(t *testing.T) {
	assert.Equal(t, ".png", FormatPNG.Extension())
	assert.Equal(t, ".jpg", FormatJPEG.Extension())
}

func TestFormatFromExtension(t *testing.T) {
	cases := map[string]Format{"jpg": FormatJPEG, ".JPEG": FormatJPEG, "png": FormatPNG, "PNG": FormatPNG}
	for ext, want := range cases {
		got, ok := FormatFromExtension(ext)
		assert.True(t, ok, ext)
		assert.Equal(t, want, got, ext)
	}
	for _, ext := range []string{"", "txt", "gif", "bmp"} {
		_, ok := FormatFromExtension(ext)
		assert.False(t, ok, ext)
	}
	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "image/jpeg", FormatJPEG.ContentType())
}
