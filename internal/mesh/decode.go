package mesh

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"crp-extractor/internal/binreader"
)

const (
	// maxSubMeshes rejects corrupt submesh counts.
	maxSubMeshes = 1000
	// maxTrailingSkip bounds how many unread bytes are skipped after the
	// last structured field.
	maxTrailingSkip = 16 << 20
)

// Element sizes of the serialized typed arrays.
const (
	vec2Size       = 8
	vec3Size       = 12
	vec4Size       = 16
	colorSize      = 16
	boneWeightSize = 32
	mat4Size       = 64
	indexSize      = 4
)

// Decode reads a mesh body of size bytes starting at the cursor. Attribute
// failures are recorded on the mesh rather than returned; the only error is
// a negative size.
func Decode(r *binreader.Reader, size int64) (*Mesh, error) {
	if size < 0 {
		return nil, errors.Errorf("mesh: negative body size %d", size)
	}
	start := r.Pos()
	m := &Mesh{}
	var err error

	if m.Vertices, err = readArray(r, vec3Size, readVec3); err != nil {
		m.fail("vertices", err)
	}
	if m.Colors, err = readArray(r, colorSize, readVec4); err != nil {
		m.fail("colors", err)
	}
	if m.UVs, err = readArray(r, vec2Size, readVec2); err != nil {
		m.fail("uv", err)
	}
	if m.Normals, err = readArray(r, vec3Size, readVec3); err != nil {
		m.fail("normals", err)
	}
	if m.Tangents, err = readArray(r, vec4Size, readVec4); err != nil {
		m.fail("tangents", err)
	}
	if m.Weights, err = readArray(r, boneWeightSize, readBoneWeight); err != nil {
		m.fail("boneWeights", err)
	}
	if m.BindPoses, err = readArray(r, mat4Size, readMat4); err != nil {
		m.fail("bindPoses", err)
	}

	count, err := r.ReadI32()
	switch {
	case err != nil:
		m.fail("subMeshCount", err)
		count = 0
	case count < 0 || count > maxSubMeshes:
		m.fail("subMeshCount", errors.Errorf("implausible count %d", count))
		count = 0
	}
	for i := 0; i < int(count); i++ {
		tris, err := readArray(r, indexSize, readIndex)
		if err != nil {
			m.fail(fmt.Sprintf("subMesh[%d]", i), err)
			break
		}
		begin := len(m.Triangles)
		m.Triangles = append(m.Triangles, tris...)
		m.SubMeshes = append(m.SubMeshes, [2]int{begin, len(m.Triangles)})
	}
	m.SubMeshCount = len(m.SubMeshes)

	if left := size - (r.Pos() - start); left > 0 {
		m.Trailing = left
		if left <= maxTrailingSkip && left <= r.Remaining() {
			_ = r.Skip(left)
		}
	}
	return m, nil
}

func (m *Mesh) fail(attribute string, err error) {
	m.Errors = append(m.Errors, &AttributeError{Attribute: attribute, Err: err})
}

// readArray reads an int32 element count followed by count fixed-size
// elements. Counts that cannot fit in the cursor window are corrupt.
func readArray[T any](r *binreader.Reader, elemSize int, decode func([]byte) T) ([]T, error) {
	count, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, errors.Errorf("negative element count %d", count)
	}
	need := int64(count) * int64(elemSize)
	if need > r.Remaining() {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "%d elements need %d bytes, %d left", count, need, r.Remaining())
	}
	raw, err := r.ReadBytes(need)
	if err != nil {
		return nil, err
	}

	out := make([]T, count)
	for i := range out {
		out[i] = decode(raw[i*elemSize:])
	}
	return out, nil
}

func f32(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func readVec2(b []byte) mgl32.Vec2 { return mgl32.Vec2{f32(b, 0), f32(b, 1)} }

func readVec3(b []byte) mgl32.Vec3 { return mgl32.Vec3{f32(b, 0), f32(b, 1), f32(b, 2)} }

func readVec4(b []byte) mgl32.Vec4 {
	return mgl32.Vec4{f32(b, 0), f32(b, 1), f32(b, 2), f32(b, 3)}
}

// readMat4 reads 16 floats in column-major order.
func readMat4(b []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = f32(b, i)
	}
	return m
}

func readBoneWeight(b []byte) BoneWeight {
	var w BoneWeight
	for i := 0; i < 4; i++ {
		w.Weights[i] = f32(b, i)
		w.Bones[i] = int32(binary.LittleEndian.Uint32(b[16+i*4:]))
	}
	return w
}

func readIndex(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
