package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeTransparentPNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	src.Set(1, 1, color.NRGBA{R: 255, A: 255})

	img, err := Normalize(encodePNG(t, src))
	require.NoError(t, err)

	assert.Equal(t, MimeJPEG, img.MimeType)
	assert.Equal(t, Info{Format: "PNG", Width: 8, Height: 4, Mode: "RGBA"}, img.Info)
	assert.Equal(t, "8x4", img.Info.Size())

	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), decoded.Bounds())

	r, g, b, _ := decoded.At(6, 3).RGBA()
	assert.Greater(t, r>>8, uint32(240), "transparent areas are flattened onto white")
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestInspectModes(t *testing.T) {
	opaque := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			opaque.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	gray := image.NewGray(image.Rect(0, 0, 3, 3))
	paletted := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})

	cases := map[string]struct {
		img  image.Image
		mode string
	}{
		"opaque":  {img: opaque, mode: "RGB"},
		"gray":    {img: gray, mode: "L"},
		"palette": {img: paletted, mode: "P"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			info, err := Inspect(encodePNG(t, tc.img))
			require.NoError(t, err)
			assert.Equal(t, tc.mode, info.Mode)
			assert.Equal(t, "PNG", info.Format)
		})
	}
}

func TestInspectJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 5, 7)), nil))

	info, err := Inspect(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, Info{Format: "JPEG", Width: 5, Height: 7, Mode: "RGB"}, info)
}

func TestNormalizeRejectsUnknownData(t *testing.T) {
	_, err := Normalize([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Normalize(nil)
	assert.Error(t, err)
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed("image/png"))
	assert.True(t, Allowed("IMAGE/JPEG; charset=binary"))
	assert.True(t, Allowed("image/webp"))
	assert.False(t, Allowed("image/gif"))
	assert.False(t, Allowed(""))
}

func TestSniffMIME(t *testing.T) {
	pngData := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 1)))

	assert.Equal(t, "image/png", SniffMIME("image/png; q=1", nil))
	assert.Equal(t, "image/png", SniffMIME("application/octet-stream", pngData))
	assert.Equal(t, "image/png", SniffMIME("", pngData))
}

// withPNGSize rewrites the IHDR dimensions of an encoded PNG and fixes the
// chunk checksum, leaving the pixel data untouched.
func withPNGSize(t *testing.T, data []byte, width, height uint32) []byte {
	t.Helper()
	require.Equal(t, "IHDR", string(data[12:16]))
	out := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestOversizedCanvasIsRejected(t *testing.T) {
	small := encodePNG(t, image.NewGray(image.Rect(0, 0, 4, 4)))
	huge := withPNGSize(t, small, 50_000, 50_000)

	_, err := Normalize(huge)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = Inspect(huge)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = Normalize(small)
	assert.NoError(t, err)
}
