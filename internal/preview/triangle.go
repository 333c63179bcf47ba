package preview

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// vertex is a projected vertex: screen x, y, depth z and its sRGB color.
type vertex struct {
	pos   mgl64.Vec3
	color [4]float64
}

// rasterize draws one flat-shaded triangle with a z-buffer. Vertex colors
// are interpolated before lighting.
func rasterize(fb *frameBuffer, a, b, c *vertex, l *lighting) {
	p0, p1, p2 := a.pos, b.pos, c.pos

	// Face normal for flat shading
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	nl := n.Len()
	if nl < 1e-8 {
		return
	}
	shade := l.shade(n.Mul(1 / nl))

	// Bounding box
	size := fb.size
	minX := max(int(math.Min(math.Min(p0[0], p1[0]), p2[0])), 0)
	maxX := min(int(math.Max(math.Max(p0[0], p1[0]), p2[0]))+1, size-1)
	minY := max(int(math.Min(math.Min(p0[1], p1[1]), p2[1])), 0)
	maxY := min(int(math.Max(math.Max(p0[1], p1[1]), p2[1]))+1, size-1)
	if minX >= maxX || minY >= maxY {
		return
	}

	// Barycentric setup
	det := (p1[1]-p2[1])*(p0[0]-p2[0]) + (p2[0]-p1[0])*(p0[1]-p2[1])
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det
	dy12 := p1[1] - p2[1]
	dx21 := p2[0] - p1[0]
	dy20 := p2[1] - p0[1]
	dx02 := p0[0] - p2[0]

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) - p2[1]
		row := sy * size
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) - p2[0]
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*p0[2] + w1*p1[2] + w2*p2[2]
			zi := row + sx
			if z <= fb.depth[zi] {
				continue
			}

			alpha := w0*a.color[3] + w1*b.color[3] + w2*c.color[3]
			if alpha < 8 {
				continue
			}
			fb.depth[zi] = z

			pi := zi * 4
			for k := 0; k < 3; k++ {
				v := w0*a.color[k] + w1*b.color[k] + w2*c.color[k]
				fb.color[pi+k] = l.apply(clamp8(v), shade)
			}
			fb.color[pi+3] = clamp8(alpha)
		}
	}
}
