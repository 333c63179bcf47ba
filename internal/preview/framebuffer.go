package preview

import (
	"image"
	"math"
)

// frameBuffer holds the rendering target as flat slices for cache locality.
type frameBuffer struct {
	size  int
	color []uint8   // RGBA interleaved, len = size*size*4
	depth []float64 // per pixel, initialized to -inf
}

func newFrameBuffer(size int) *frameBuffer {
	n := size * size
	depth := make([]float64, n)
	for i := range depth {
		depth[i] = math.Inf(-1)
	}
	return &frameBuffer{size: size, color: make([]uint8, n*4), depth: depth}
}

func (fb *frameBuffer) image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fb.size, fb.size))
	copy(img.Pix, fb.color)
	return img
}
