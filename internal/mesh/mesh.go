package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// BoneWeight binds a vertex to up to four bones.
type BoneWeight struct {
	Weights [4]float32
	Bones   [4]int32
}

// Mesh holds every attribute recovered from a mesh asset. Any array may be
// empty; attributes are decoded independently.
type Mesh struct {
	Name      string
	Vertices  []mgl32.Vec3
	Colors    []mgl32.Vec4
	UVs       []mgl32.Vec2
	Normals   []mgl32.Vec3
	Tangents  []mgl32.Vec4
	Weights   []BoneWeight
	BindPoses []mgl32.Mat4

	// SubMeshCount is the number of submeshes actually decoded, which is
	// below the declared count when an index array fails.
	SubMeshCount int
	// Triangles is the flattened index list; SubMeshes holds each
	// submesh's [start, end) range into it in read order.
	Triangles []uint32
	SubMeshes [][2]int

	// Trailing counts undecoded bytes left at the end of the asset.
	Trailing int64
	// Errors collects per-attribute failures.
	Errors []error
}

// Exportable reports whether the mesh has geometry worth persisting.
func (m *Mesh) Exportable() bool { return len(m.Vertices) > 0 }

// Degraded reports whether any attribute had to be dropped.
func (m *Mesh) Degraded() bool { return len(m.Errors) > 0 }

// SubMesh returns the triangle indices of submesh i.
func (m *Mesh) SubMesh(i int) []uint32 {
	r := m.SubMeshes[i]
	return m.Triangles[r[0]:r[1]]
}

func (m *Mesh) String() string {
	return fmt.Sprintf("mesh %q: %d verts, %d normals, %d uvs, %d tris in %d submeshes",
		m.Name, len(m.Vertices), len(m.Normals), len(m.UVs), len(m.Triangles)/3, len(m.SubMeshes))
}

// AttributeError is a failure to read one typed array. The attribute is
// left empty and decoding continues.
type AttributeError struct {
	Attribute string
	Err       error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("mesh: attribute %s: %v", e.Attribute, e.Err)
}

func (e *AttributeError) Unwrap() error { return e.Err }
