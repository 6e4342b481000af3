package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"

	jpegQuality = 90

	// MaxPixels caps width times height before any pixel buffer is
	// allocated. A small compressed file can declare a huge canvas.
	MaxPixels = 40_000_000
)

var (
	ErrUnsupported = errors.New("unsupported image type")
	ErrTooLarge    = errors.New("image dimensions too large")
)

// Info describes an uploaded image as the user sent it.
type Info struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mode   string `json:"mode"`
}

func (i Info) Size() string {
	return fmt.Sprintf("%dx%d", i.Width, i.Height)
}

// Image is the payload sent to the model: always an RGB JPEG.
type Image struct {
	Data     []byte
	MimeType string
	Info     Info
}

// Allowed reports whether uploads of the given MIME type are accepted.
func Allowed(mimeType string) bool {
	switch baseMIME(mimeType) {
	case MimeJPEG, "image/jpg", MimePNG, MimeWebP:
		return true
	}
	return false
}

// SniffMIME prefers the declared content type and falls back to content
// sniffing when it is missing or generic.
func SniffMIME(declared string, data []byte) string {
	mimeType := baseMIME(declared)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = baseMIME(http.DetectContentType(data))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = MimeJPEG
	}
	return mimeType
}

// Inspect decodes only as much as needed to describe the image.
func Inspect(data []byte) (Info, error) {
	img, format, err := decode(data)
	if err != nil {
		return Info{}, err
	}
	return describe(img, format), nil
}

// Normalize decodes a PNG, JPEG or WebP upload, flattens it onto an opaque
// RGB canvas and re-encodes it as JPEG.
func Normalize(data []byte) (Image, error) {
	img, format, err := decode(data)
	if err != nil {
		return Image{}, err
	}
	info := describe(img, format)

	bounds := img.Bounds()
	rgb := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgb, rgb.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return Image{
		Data:     buf.Bytes(),
		MimeType: MimeJPEG,
		Info:     info,
	}, nil
}

func decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}

	if err := checkDimensions(data); err != nil {
		return nil, "", err
	}

	if SniffMIME("", data) == MimeWebP {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, "", fmt.Errorf("decode webp: %w", err)
		}
		return img, "webp", nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupported
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// checkDimensions reads only the image header and rejects canvases above
// MaxPixels.
func checkDimensions(data []byte) error {
	var (
		cfg image.Config
		err error
	)
	if SniffMIME("", data) == MimeWebP {
		cfg, err = webp.DecodeConfig(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return fmt.Errorf("decode webp: %w", err)
		}
	} else {
		cfg, _, err = image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			if errors.Is(err, image.ErrFormat) {
				return ErrUnsupported
			}
			return fmt.Errorf("decode image: %w", err)
		}
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("decode image: invalid size %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, MaxPixels)
	}
	return nil
}

func describe(img image.Image, format string) Info {
	b := img.Bounds()
	return Info{
		Format: strings.ToUpper(format),
		Width:  b.Dx(),
		Height: b.Dy(),
		Mode:   mode(img),
	}
}

// mode names the pixel layout the way imaging tools usually report it.
func mode(img image.Image) string {
	switch m := img.(type) {
	case *image.Paletted:
		return "P"
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.CMYK:
		return "CMYK"
	case *image.YCbCr:
		return "RGB"
	case *image.RGBA:
		if m.Opaque() {
			return "RGB"
		}
		return "RGBA"
	case *image.NRGBA:
		if m.Opaque() {
			return "RGB"
		}
		return "RGBA"
	case *image.RGBA64, *image.NRGBA64:
		return "RGBA"
	}
	return "RGB"
}

func baseMIME(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ";") {
		value = strings.TrimSpace(strings.SplitN(value, ";", 2)[0])
	}
	return strings.ToLower(value)
}
