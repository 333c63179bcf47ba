// Package preview renders decoded meshes to small shaded thumbnails.
package preview

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"crp-extractor/internal/mesh"
)

// ErrNothingToDraw is returned for meshes without drawable triangles.
var ErrNothingToDraw = errors.New("preview: mesh has no drawable triangles")

// Options controls the thumbnail camera and canvas.
type Options struct {
	Size        int
	Supersample int
	// Yaw and Pitch orient the model, in degrees.
	Yaw, Pitch float64
	// FillRatio is the share of the canvas the model's longest side covers.
	FillRatio float64
}

// DefaultOptions is a 256px three-quarter view.
var DefaultOptions = Options{Size: 256, Supersample: 2, Yaw: 35, Pitch: 20, FillRatio: 0.9}

var defaultColor = [4]float64{160, 160, 170, 255}

// Render draws every in-range triangle of m, orthographic, lit from a fixed
// key and rim light.
func Render(m *mesh.Mesh, opts Options) (*image.NRGBA, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultOptions.Size
	}
	if opts.Supersample < 1 {
		opts.Supersample = 1
	}
	if opts.FillRatio <= 0 || opts.FillRatio > 1 {
		opts.FillRatio = DefaultOptions.FillRatio
	}
	if !m.Exportable() || len(m.Triangles) < 3 {
		return nil, ErrNothingToDraw
	}

	rot := mgl64.Rotate3DX(mgl64.DegToRad(opts.Pitch)).Mul3(mgl64.Rotate3DY(mgl64.DegToRad(opts.Yaw)))
	verts := make([]vertex, len(m.Vertices))
	lo := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	useColors := len(m.Colors) == len(m.Vertices)
	for i, v := range m.Vertices {
		p := rot.Mul3x1(mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])})
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], p[k])
			hi[k] = math.Max(hi[k], p[k])
		}
		verts[i].pos = p
		verts[i].color = defaultColor
		if useColors {
			c := m.Colors[i]
			verts[i].color = [4]float64{float64(c[0]) * 255, float64(c[1]) * 255, float64(c[2]) * 255, float64(c[3]) * 255}
		}
	}

	renderSize := opts.Size * opts.Supersample
	span := math.Max(math.Max(hi[0]-lo[0], hi[1]-lo[1]), 0.001)
	margin := float64(renderSize) / 16
	scale := (float64(renderSize) - 2*margin) / span
	center := lo.Add(hi).Mul(0.5)
	half := float64(renderSize) / 2
	for i := range verts {
		p := verts[i].pos
		// Screen y grows downward.
		verts[i].pos = mgl64.Vec3{(p[0]-center[0])*scale + half, half - (p[1]-center[1])*scale, p[2] * scale}
	}

	fb := newFrameBuffer(renderSize)
	l := defaultLighting()
	n := uint32(len(verts))
	for s := range m.SubMeshes {
		tris := m.SubMesh(s)
		for i := 0; i+2 < len(tris); i += 3 {
			a, b, c := tris[i], tris[i+1], tris[i+2]
			if a >= n || b >= n || c >= n {
				continue
			}
			rasterize(fb, &verts[a], &verts[b], &verts[c], &l)
		}
	}

	img := fb.image()
	if opts.Supersample > 1 {
		img = downsample(img, opts.Size)
	}
	return fit(img, opts.Size, opts.FillRatio), nil
}
