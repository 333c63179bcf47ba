// Package crptest builds CRP byte streams for tests.
package crptest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
)

// Buffer appends little-endian values the way the CRP serializer writes them.
type Buffer struct {
	bytes.Buffer
}

func (b *Buffer) Bool(v bool) *Buffer {
	if v {
		b.WriteByte(1)
	} else {
		b.WriteByte(0)
	}
	return b
}

func (b *Buffer) U16(v uint16) *Buffer {
	binary.Write(&b.Buffer, binary.LittleEndian, v)
	return b
}

func (b *Buffer) U32(v uint32) *Buffer {
	binary.Write(&b.Buffer, binary.LittleEndian, v)
	return b
}

func (b *Buffer) I32(v int32) *Buffer {
	binary.Write(&b.Buffer, binary.LittleEndian, v)
	return b
}

func (b *Buffer) I64(v int64) *Buffer {
	binary.Write(&b.Buffer, binary.LittleEndian, v)
	return b
}

func (b *Buffer) F32(vs ...float32) *Buffer {
	for _, v := range vs {
		b.U32(math.Float32bits(v))
	}
	return b
}

func (b *Buffer) Raw(p []byte) *Buffer {
	b.Write(p)
	return b
}

// Str writes a 7-bit length prefixed string.
func (b *Buffer) Str(s string) *Buffer {
	n := uint32(len(s))
	for n >= 0x80 {
		b.WriteByte(byte(n) | 0x80)
		n >>= 7
	}
	b.WriteByte(byte(n))
	b.WriteString(s)
	return b
}

// Asset is one entry of a container under construction.
type Asset struct {
	Name     string
	Checksum string
	Type     int32
	Content  []byte
	// SizeDelta is added to the declared size to fake a corrupt table.
	SizeDelta int64
}

// Container describes a whole CRP file.
type Container struct {
	FormatVersion uint16
	PackageName   string
	Author        string
	PkgVersion    uint32
	MainAsset     string
	Assets        []Asset
}

// Bytes serializes the container: header, table, then concatenated content.
func (c Container) Bytes() []byte {
	var table Buffer
	var offset int64
	for _, a := range c.Assets {
		table.Str(a.Name).Str(a.Checksum).I32(a.Type).I64(offset).I64(int64(len(a.Content)) + a.SizeDelta)
		offset += int64(len(a.Content))
	}

	var head Buffer
	head.Raw([]byte("CRAP")).U16(c.FormatVersion).Str(c.PackageName).Str(c.Author).
		U32(c.PkgVersion).Str(c.MainAsset).I32(int32(len(c.Assets)))
	begin := int64(head.Len()) + 8 + int64(table.Len())
	head.I64(begin)
	head.Raw(table.Bytes())
	for _, a := range c.Assets {
		head.Raw(a.Content)
	}
	return head.Bytes()
}

// Object builds asset content: presence flag, qualified type name, asset name, body.
func Object(qualifiedType, name string, body []byte) []byte {
	var b Buffer
	b.Bool(true).Str(qualifiedType).Str(name).Raw(body)
	return b.Bytes()
}

// TextureBody builds the image-typed body: flag, declared length, payload.
func TextureBody(payload []byte) []byte {
	var b Buffer
	b.Bool(false).I32(int32(len(payload))).Raw(payload)
	return b.Bytes()
}

// PNG encodes a w x h image with one opaque pixel at the origin.
func PNG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// TriangleMesh writes a mesh body with three vertices, three uvs and one
// submesh holding a single triangle.
func TriangleMesh() []byte {
	var b Buffer
	b.I32(3).F32(0, 0, 0, 1, 0, 0, 0, 1, 0)
	b.I32(0)
	b.I32(3).F32(0, 0, 1, 0, 0, 1)
	b.I32(0)
	b.I32(0)
	b.I32(0)
	b.I32(0)
	b.I32(1)
	b.I32(3).I32(0).I32(1).I32(2)
	return b.Bytes()
}
