package texture

import (
	"image"

	"github.com/pkg/errors"
)

// Format tags which recovery path produced an image.
type Format int

const (
	FormatEmpty Format = iota
	FormatPNG
	FormatDDS
	FormatJPEG
	FormatTGA
	FormatRaw
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "embedded-png"
	case FormatDDS:
		return "embedded-dds"
	case FormatJPEG:
		return "embedded-jpeg"
	case FormatTGA:
		return "embedded-tga"
	case FormatRaw:
		return "raw-pixel-guess"
	default:
		return "empty"
	}
}

func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

var (
	// ErrEmptyPayload means the asset leaves no bytes for pixel data.
	ErrEmptyPayload = errors.New("texture: empty payload")
	// ErrUnrecoverable means no signature or raw layout matched; a placeholder was used.
	ErrUnrecoverable = errors.New("texture: unrecoverable image")
)

// Buffer is a decoded image plus how it was recovered.
type Buffer struct {
	Format Format
	Image  image.Image
	// Offset of the matched signature within the payload.
	Offset int
	// Flag and DeclaredLength are the two prefix fields of image assets.
	// DeclaredLength is informational only.
	Flag           bool
	DeclaredLength int32
	PayloadSize    int
	// Err records why the placeholder was used or why earlier candidates failed.
	Err error
}

// Bounds returns the pixel dimensions.
func (b *Buffer) Bounds() image.Rectangle {
	if b.Image == nil {
		return image.Rectangle{}
	}
	return b.Image.Bounds()
}

// Placeholder reports whether decoding fell back to the 1x1 image.
func (b *Buffer) Placeholder() bool { return b.Format == FormatEmpty }

func placeholder() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 1, 1))
}
