package texture

import (
	"image"
	"io"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// OutputFormat selects the persisted image encoding.
type OutputFormat string

const (
	OutputPNG  OutputFormat = "png"
	OutputWebP OutputFormat = "webp"
)

// ParseOutputFormat accepts "png" or "webp", case-insensitive. Empty means png.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputPNG:
		return OutputPNG, nil
	case OutputWebP:
		return OutputWebP, nil
	}
	return "", errors.Errorf("texture: unknown image format %q", s)
}

// Ext returns the file extension including the dot.
func (f OutputFormat) Ext() string { return "." + string(f) }

// Normalize prepares a decoded buffer for persistence. Raw pixel guesses
// come from bottom-up rows and are flipped; everything is repainted into a
// fresh image so no source metadata survives.
func Normalize(b *Buffer) image.Image {
	if b == nil || b.Image == nil {
		return placeholder()
	}
	img := toNRGBA(b.Image)
	if b.Format == FormatRaw {
		return transform.FlipV(img)
	}
	return img
}

// Encode writes img in the given output format.
func Encode(w io.Writer, img image.Image, format OutputFormat) error {
	switch format {
	case OutputWebP:
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return errors.Wrap(err, "texture: webp encode")
		}
	default:
		if err := imgio.PNGEncoder()(w, img); err != nil {
			return errors.Wrap(err, "texture: png encode")
		}
	}
	return nil
}

// toNRGBA converts any image to NRGBA with its origin at 0,0.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		dst := image.NewNRGBA(b)
		copy(dst.Pix, n.Pix)
		return dst
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
