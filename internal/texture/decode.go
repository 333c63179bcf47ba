package texture

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"

	"crp-extractor/internal/binreader"
)

// prefixSize is the flag byte plus the 32-bit declared length.
const prefixSize = 5

// maxTries bounds how many occurrences of one signature are tried.
const maxTries = 16

type signature struct {
	format Format
	magic  []byte
	decode func([]byte) (image.Image, error)
}

// signatures in priority order. Changing the order changes which
// containers decode.
var signatures = []signature{
	{FormatDDS, []byte("DDS "), func(b []byte) (image.Image, error) { return decodeDDS(b) }},
	{FormatPNG, []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, decodePNG},
	{FormatJPEG, []byte{0xff, 0xd8, 0xff, 0xe0}, decodeJPEG},
	{FormatJPEG, []byte{0xff, 0xd8, 0xff, 0xe1}, decodeJPEG},
	{FormatJPEG, []byte{0xff, 0xd8, 0xff, 0xdb}, decodeJPEG},
	{FormatJPEG, []byte{0xff, 0xd8, 0xff, 0xee}, decodeJPEG},
}

var tgaFooter = []byte("TRUEVISION-XFILE.\x00")

// rawDimensions are tried as square RGB when the payload is not square RGBA.
var rawDimensions = []int{1024, 512, 256, 128, 64}

// maxPixels caps the dimensions an embedded header may claim.
const maxPixels = 8192 * 8192

// Worst-case decoded bytes per encoded byte. Claims beyond this cannot be
// backed by the slice and would only allocate.
const (
	deflateRatio = 1032
	rleRatio     = 256
)

// checkConfig rejects headers whose dimensions cannot come from n encoded
// bytes.
func checkConfig(cfg image.Config, n, ratio int) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.Errorf("empty dimensions %dx%d", cfg.Width, cfg.Height)
	}
	px := int64(cfg.Width) * int64(cfg.Height)
	if px > maxPixels || px*4 > int64(n)*int64(ratio) {
		return errors.Errorf("implausible dimensions %dx%d for %d bytes", cfg.Width, cfg.Height, n)
	}
	return nil
}

type decodeFuncs struct {
	config func(io.Reader) (image.Config, error)
	decode func(io.Reader) (image.Image, error)
	ratio  int
}

func (d decodeFuncs) run(b []byte) (image.Image, error) {
	cfg, err := d.config(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	if err := checkConfig(cfg, len(b), d.ratio); err != nil {
		return nil, err
	}
	return d.decode(bytes.NewReader(b))
}

var (
	pngCodec  = decodeFuncs{png.DecodeConfig, png.Decode, deflateRatio}
	jpegCodec = decodeFuncs{jpeg.DecodeConfig, jpeg.Decode, deflateRatio}
	tgaCodec  = decodeFuncs{tga.DecodeConfig, tga.Decode, rleRatio}
)

func decodePNG(b []byte) (image.Image, error) { return pngCodec.run(b) }

func decodeJPEG(b []byte) (image.Image, error) { return jpegCodec.run(b) }

// DecodeAsset reads an image-typed asset body: flag, declared length, then
// remaining-5 bytes of payload. The declared length is not used for sizing.
func DecodeAsset(r *binreader.Reader, remaining int64) (*Buffer, error) {
	flag, err := r.ReadBool()
	if err != nil {
		return nil, errors.Wrap(err, "texture: read flag")
	}
	declared, err := r.ReadI32()
	if err != nil {
		return nil, errors.Wrap(err, "texture: read declared length")
	}

	payloadSize := remaining - prefixSize
	if payloadSize <= 0 {
		return nil, errors.Wrapf(ErrEmptyPayload, "remaining %d bytes", remaining)
	}
	payload, err := r.ReadBytes(payloadSize)
	if err != nil {
		return nil, errors.Wrap(err, "texture: read payload")
	}

	buf := DecodePayload(payload)
	buf.Flag = flag
	buf.DeclaredLength = declared
	return buf, nil
}

// DecodePayload recovers an image from bytes of unknown layout. It never
// fails: when nothing matches the result is a 1x1 transparent placeholder.
func DecodePayload(payload []byte) *Buffer {
	buf := &Buffer{PayloadSize: len(payload)}
	var errs []error

	for _, sig := range signatures {
		base := 0
		for try := 0; try < maxTries; try++ {
			i := bytes.Index(payload[base:], sig.magic)
			if i < 0 {
				break
			}
			off := base + i
			img, err := sig.decode(payload[off:])
			if err == nil {
				buf.Format, buf.Image, buf.Offset = sig.format, img, off
				return buf
			}
			errs = append(errs, errors.Wrapf(err, "%s at %d", sig.format, off))
			base = off + 1
		}
	}

	if end := bytes.LastIndex(payload, tgaFooter); end >= 0 {
		img, err := tgaCodec.run(payload[:end+len(tgaFooter)])
		if err == nil {
			buf.Format, buf.Image = FormatTGA, img
			return buf
		}
		errs = append(errs, errors.Wrap(err, "embedded-tga"))
	}

	if img := guessRaw(payload); img != nil {
		buf.Format, buf.Image = FormatRaw, img
		return buf
	}

	buf.Format, buf.Image = FormatEmpty, placeholder()
	buf.Err = errors.Wrapf(ErrUnrecoverable, "%d byte payload, %d failed candidates", len(payload), len(errs))
	return buf
}

// guessRaw interprets headerless pixel data: square RGBA when the size is
// exactly side*side*4, otherwise the largest common square RGB that fits.
func guessRaw(payload []byte) *image.NRGBA {
	n := len(payload)
	if n > 0 && n%4 == 0 {
		if side := isqrt(n / 4); side*side == n/4 {
			img := image.NewNRGBA(image.Rect(0, 0, side, side))
			copy(img.Pix, payload)
			return img
		}
	}

	for _, d := range rawDimensions {
		if d*d*3 > n {
			continue
		}
		img := image.NewNRGBA(image.Rect(0, 0, d, d))
		for i := 0; i < d*d; i++ {
			img.Pix[i*4] = payload[i*3]
			img.Pix[i*4+1] = payload[i*3+1]
			img.Pix[i*4+2] = payload[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
		return img
	}
	return nil
}

func isqrt(n int) int {
	if n < 2 {
		return n
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
