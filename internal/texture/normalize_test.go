package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFlipsRawRows(t *testing.T) {
	// 2x2 RGBA, bottom-up: first row red, second row blue.
	payload := []byte{
		255, 0, 0, 255, 255, 0, 0, 255,
		0, 0, 255, 255, 0, 0, 255, 255,
	}
	buf := DecodePayload(payload)
	require.Equal(t, FormatRaw, buf.Format)

	img := Normalize(buf)
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0xffff}, [3]uint32{r, g, b})
	r, g, b, _ = img.At(1, 1).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})
}

func TestNormalizeKeepsEmbeddedOrientation(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img := Normalize(&Buffer{Format: FormatPNG, Image: src})
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.At(0, 0))
}

func TestNormalizeNil(t *testing.T) {
	img := Normalize(nil)
	assert.Equal(t, image.Rect(0, 0, 1, 1), img.Bounds())
}

func TestEncode(t *testing.T) {
	img := Normalize(DecodePayload(make([]byte, 4*4*4)))

	var out bytes.Buffer
	require.NoError(t, Encode(&out, img, OutputPNG))
	decoded, err := png.Decode(&out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), decoded.Bounds())

	out.Reset()
	require.NoError(t, Encode(&out, img, OutputWebP))
	assert.Equal(t, "RIFF", string(out.Bytes()[:4]))
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputPNG, f)

	f, err = ParseOutputFormat("WebP")
	require.NoError(t, err)
	assert.Equal(t, ".webp", f.Ext())

	_, err = ParseOutputFormat("bmp")
	assert.Error(t, err)
}
