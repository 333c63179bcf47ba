package preview

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// lighting holds precomputed lighting parameters.
type lighting struct {
	light       mgl64.Vec3
	rim         mgl64.Vec3
	half        mgl64.Vec3 // Blinn-Phong half vector
	ambient     float64
	hemi        float64
	direct      float64
	rimLevel    float64
	specularInt float64
	specularPow float64
	exposure    float64
	invGamma    float64
}

func defaultLighting() lighting {
	light := mgl64.Vec3{180, 260, 140}.Normalize()
	view := mgl64.Vec3{0, -110, -400}.Normalize()
	return lighting{
		light:       light,
		rim:         mgl64.Vec3{-160, 130, -210}.Normalize(),
		half:        light.Sub(view).Normalize(),
		ambient:     0.55,
		hemi:        0.50,
		direct:      1.50,
		rimLevel:    0.60,
		specularInt: 0.45,
		specularPow: 12.0,
		exposure:    1.05,
		invGamma:    1.0 / 2.2,
	}
}

// shade returns the combined lighting scalar for a unit face normal. Faces
// are lit from both sides.
func (l *lighting) shade(n mgl64.Vec3) float64 {
	ndh := n.Dot(l.half)
	if ndh < 0 {
		ndh = 0
	}
	return l.ambient +
		((1.0-math.Abs(n[1]))*0.5+0.5)*l.hemi +
		math.Abs(n.Dot(l.light))*l.direct +
		math.Abs(n.Dot(l.rim))*l.rimLevel +
		math.Pow(ndh, l.specularPow)*l.specularInt
}

// apply lights an sRGB channel: decode, scale, tone map, re-encode.
func (l *lighting) apply(c uint8, shade float64) uint8 {
	v := acesTonemap(srgbToLinear[c] * shade * l.exposure)
	return clamp8(math.Pow(v, l.invGamma) * 255)
}

var srgbToLinear [256]float64

func init() {
	for i := range srgbToLinear {
		srgbToLinear[i] = math.Pow(float64(i)/255.0, 2.2)
	}
}

// acesTonemap applies ACES filmic tone mapping to a linear value.
func acesTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
