package texture

import (
	"encoding/binary"
	"image"
	"image/color"
	"math/bits"

	"github.com/pkg/errors"
)

const (
	ddsHeaderSize  = 128 // magic + 124 byte header
	dx10HeaderSize = 20

	ddpfAlphaPixels = 0x1
	ddpfFourCC      = 0x4
	ddpfRGB         = 0x40
)

type ddsHeader struct {
	Height      uint32
	Width       uint32
	PixelFlags  uint32
	FourCC      string
	RGBBitCount uint32
	Masks       [4]uint32 // r, g, b, a
}

func parseDDSHeader(data []byte) (ddsHeader, error) {
	var h ddsHeader
	if len(data) < ddsHeaderSize {
		return h, errors.Errorf("dds: header truncated (%d bytes)", len(data))
	}
	if string(data[:4]) != "DDS " {
		return h, errors.New("dds: bad magic")
	}
	if size := binary.LittleEndian.Uint32(data[4:]); size != 124 {
		return h, errors.Errorf("dds: bad header size %d", size)
	}
	h.Height = binary.LittleEndian.Uint32(data[12:])
	h.Width = binary.LittleEndian.Uint32(data[16:])
	h.PixelFlags = binary.LittleEndian.Uint32(data[80:])
	h.FourCC = string(data[84:88])
	h.RGBBitCount = binary.LittleEndian.Uint32(data[88:])
	for i := range h.Masks {
		h.Masks[i] = binary.LittleEndian.Uint32(data[92+i*4:])
	}
	if h.Width == 0 || h.Height == 0 || h.Width > 16384 || h.Height > 16384 {
		return h, errors.Errorf("dds: implausible dimensions %dx%d", h.Width, h.Height)
	}
	return h, nil
}

// decodeDDS decodes the top mip level of a DDS file.
func decodeDDS(data []byte) (*image.NRGBA, error) {
	h, err := parseDDSHeader(data)
	if err != nil {
		return nil, err
	}
	w, ht := int(h.Width), int(h.Height)
	body := data[ddsHeaderSize:]

	if h.PixelFlags&ddpfFourCC != 0 {
		fourCC := h.FourCC
		if fourCC == "DX10" {
			if len(body) < dx10HeaderSize {
				return nil, errors.New("dds: DX10 header truncated")
			}
			switch binary.LittleEndian.Uint32(body) {
			case 70, 71, 72:
				fourCC = "DXT1"
			case 73, 74, 75:
				fourCC = "DXT3"
			case 76, 77, 78:
				fourCC = "DXT5"
			case 27, 28, 29:
				return decodeUncompressed(body[dx10HeaderSize:], w, ht, 32,
					[4]uint32{0xff, 0xff00, 0xff0000, 0xff000000})
			case 87, 90, 91:
				return decodeUncompressed(body[dx10HeaderSize:], w, ht, 32,
					[4]uint32{0xff0000, 0xff00, 0xff, 0xff000000})
			default:
				return nil, errors.Errorf("dds: unsupported DXGI format %d", binary.LittleEndian.Uint32(body))
			}
			body = body[dx10HeaderSize:]
		}
		switch fourCC {
		case "DXT1":
			return decodeBlocks(body, w, ht, 8, decompressBlockDXT1)
		case "DXT2", "DXT3":
			return decodeBlocks(body, w, ht, 16, decompressBlockDXT3)
		case "DXT4", "DXT5":
			return decodeBlocks(body, w, ht, 16, decompressBlockDXT5)
		default:
			return nil, errors.Errorf("dds: unsupported fourcc %q", fourCC)
		}
	}

	if h.PixelFlags&ddpfRGB != 0 {
		masks := h.Masks
		if h.PixelFlags&ddpfAlphaPixels == 0 {
			masks[3] = 0
		}
		return decodeUncompressed(body, w, ht, int(h.RGBBitCount), masks)
	}
	return nil, errors.Errorf("dds: unsupported pixel format flags 0x%x", h.PixelFlags)
}

func decodeBlocks(data []byte, w, h, blockSize int, block func([]byte, *[16]color.NRGBA)) (*image.NRGBA, error) {
	bw, bh := (w+3)/4, (h+3)/4
	if need := bw * bh * blockSize; len(data) < need {
		return nil, errors.Errorf("dds: need %d bytes of blocks, have %d", need, len(data))
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var colors [16]color.NRGBA
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			block(data[(by*bw+bx)*blockSize:], &colors)
			for i, c := range colors {
				x, y := bx*4+i%4, by*4+i/4
				if x < w && y < h {
					img.SetNRGBA(x, y, c)
				}
			}
		}
	}
	return img, nil
}

func decodeUncompressed(data []byte, w, h, bitCount int, masks [4]uint32) (*image.NRGBA, error) {
	if bitCount != 32 && bitCount != 24 && bitCount != 16 {
		return nil, errors.Errorf("dds: unsupported bit count %d", bitCount)
	}
	bpp := bitCount / 8
	if need := w * h * bpp; len(data) < need {
		return nil, errors.Errorf("dds: need %d bytes of pixels, have %d", need, len(data))
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		var v uint32
		for b := 0; b < bpp; b++ {
			v |= uint32(data[i*bpp+b]) << (8 * b)
		}
		o := i * 4
		img.Pix[o] = channel(v, masks[0])
		img.Pix[o+1] = channel(v, masks[1])
		img.Pix[o+2] = channel(v, masks[2])
		if masks[3] == 0 {
			img.Pix[o+3] = 0xff
		} else {
			img.Pix[o+3] = channel(v, masks[3])
		}
	}
	return img, nil
}

func channel(v, mask uint32) uint8 {
	if mask == 0 {
		return 0
	}
	width := bits.OnesCount32(mask)
	c := (v & mask) >> bits.TrailingZeros32(mask)
	if width == 8 {
		return uint8(c)
	}
	return uint8(c * 255 / (1<<width - 1))
}

func rgb565(v uint16) (r, g, b uint16) {
	r = (v >> 11) & 0x1f
	g = (v >> 5) & 0x3f
	b = v & 0x1f
	return (r << 3) | (r >> 2), (g << 2) | (g >> 4), (b << 3) | (b >> 2)
}

// blockPalette expands the two endpoint colors. Three-color mode marks
// entry 3 transparent when punchThrough is set.
func blockPalette(c0, c1 uint16, punchThrough bool) [4]color.NRGBA {
	r0, g0, b0 := rgb565(c0)
	r1, g1, b1 := rgb565(c1)
	p := [4]color.NRGBA{opaque(r0, g0, b0), opaque(r1, g1, b1)}
	if c0 > c1 || !punchThrough {
		p[2] = opaque((2*r0+r1)/3, (2*g0+g1)/3, (2*b0+b1)/3)
		p[3] = opaque((r0+2*r1)/3, (g0+2*g1)/3, (b0+2*b1)/3)
	} else {
		p[2] = opaque((r0+r1)/2, (g0+g1)/2, (b0+b1)/2)
		p[3] = color.NRGBA{}
	}
	return p
}

func opaque(r, g, b uint16) color.NRGBA {
	return color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 0xff}
}

func colorBlock(data []byte, out *[16]color.NRGBA, punchThrough bool) {
	c0 := binary.LittleEndian.Uint16(data[0:])
	c1 := binary.LittleEndian.Uint16(data[2:])
	code := binary.LittleEndian.Uint32(data[4:])
	p := blockPalette(c0, c1, punchThrough)
	for i := 0; i < 16; i++ {
		out[i] = p[(code>>(2*uint(i)))&3]
	}
}

func decompressBlockDXT1(data []byte, out *[16]color.NRGBA) {
	colorBlock(data, out, true)
}

func decompressBlockDXT3(data []byte, out *[16]color.NRGBA) {
	colorBlock(data[8:], out, false)
	alpha := binary.LittleEndian.Uint64(data[0:])
	for i := 0; i < 16; i++ {
		a := uint8((alpha >> (4 * uint(i))) & 0xf)
		out[i].A = a<<4 | a
	}
}

func decompressBlockDXT5(data []byte, out *[16]color.NRGBA) {
	colorBlock(data[8:], out, false)

	a0, a1 := uint32(data[0]), uint32(data[1])
	var codes uint64
	for i := 0; i < 6; i++ {
		codes |= uint64(data[2+i]) << (8 * uint(i))
	}
	for i := 0; i < 16; i++ {
		code := uint32(codes>>(3*uint(i))) & 7
		var a uint32
		switch {
		case code == 0:
			a = a0
		case code == 1:
			a = a1
		case a0 > a1:
			a = ((8-code)*a0 + (code-1)*a1) / 7
		case code == 6:
			a = 0
		case code == 7:
			a = 0xff
		default:
			a = ((6-code)*a0 + (code-1)*a1) / 5
		}
		out[i].A = uint8(a)
	}
}
