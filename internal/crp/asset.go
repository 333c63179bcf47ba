package crp

import (
	"fmt"

	"crp-extractor/internal/mesh"
	"crp-extractor/internal/texture"
)

// Kind tags the variant held by an Asset.
type Kind int

const (
	KindNull Kind = iota
	KindImage
	KindMesh
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindMesh:
		return "mesh"
	case KindRaw:
		return "raw"
	default:
		return "null"
	}
}

// LUTTypeLabel names the artifact produced in lookup-table mode.
const LUTTypeLabel = "Texture2D"

// Asset is the decoded content of one table entry. Exactly one of Image,
// Mesh or Raw is meaningful for the matching Kind; Null assets carry their
// verbatim span in Raw.
type Asset struct {
	Index int
	Entry Entry
	Kind  Kind

	// QualifiedType is the full serialized type name, TypeKey the part
	// before the first comma.
	QualifiedType string
	TypeKey       string
	Name          string

	Image *texture.Buffer
	Mesh  *mesh.Mesh
	Raw   []byte

	// Err is set when structured decoding failed and Raw holds the whole
	// declared span instead.
	Err error
	// LUT marks the single asset of a lookup-table container.
	LUT bool
}

// Degraded reports whether the asset lost information during decoding.
func (a *Asset) Degraded() bool {
	switch {
	case a.Err != nil:
		return true
	case a.Kind == KindImage:
		return a.Image.Placeholder()
	case a.Kind == KindMesh:
		return a.Mesh.Degraded()
	}
	return false
}

func (a *Asset) String() string {
	switch a.Kind {
	case KindImage:
		b := a.Image.Bounds()
		return fmt.Sprintf("%s %dx%d (%s)", a.TypeKey, b.Dx(), b.Dy(), a.Image.Format)
	case KindMesh:
		return a.Mesh.String()
	case KindRaw:
		if a.TypeKey == "" {
			return fmt.Sprintf("raw %d bytes", len(a.Raw))
		}
		return fmt.Sprintf("%s raw %d bytes", a.TypeKey, len(a.Raw))
	}
	return "null"
}
