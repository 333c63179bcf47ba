package mesh

import (
	"bufio"
	"fmt"
	"io"
)

// ExportObj writes positions, UVs, normals and one group of faces per
// submesh. UVs are written as stored, since OBJ and the source share the
// bottom-left V origin. UV and normal streams are only referenced when they match the
// vertex count. Triangles with out-of-range indices are skipped.
func (m *Mesh) ExportObj(_w io.Writer) error {
	bw := bufio.NewWriter(_w)
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	if m.Name != "" {
		w("o %s", m.Name)
	}
	for _, v := range m.Vertices {
		w("v %f %f %f", v[0], v[1], v[2])
	}

	haveUV := len(m.UVs) == len(m.Vertices)
	haveNorm := len(m.Normals) == len(m.Vertices)
	if haveUV {
		for _, uv := range m.UVs {
			w("vt %f %f", uv[0], uv[1])
		}
	}
	if haveNorm {
		for _, n := range m.Normals {
			w("vn %f %f %f", n[0], n[1], n[2])
		}
	}

	nv := uint32(len(m.Vertices))
	for iSub := range m.SubMeshes {
		w("g submesh_%d", iSub)
		tris := m.SubMesh(iSub)
		for i := 0; i+3 <= len(tris); i += 3 {
			a, b, c := tris[i], tris[i+1], tris[i+2]
			if a >= nv || b >= nv || c >= nv {
				continue
			}
			a, b, c = a+1, b+1, c+1
			switch {
			case haveUV && haveNorm:
				w("f %d/%d/%d %d/%d/%d %d/%d/%d", a, a, a, b, b, b, c, c, c)
			case haveNorm:
				w("f %d//%d %d//%d %d//%d", a, a, b, b, c, c)
			case haveUV:
				w("f %d/%d %d/%d %d/%d", a, a, b, b, c, c)
			default:
				w("f %d %d %d", a, b, c)
			}
		}
	}

	return bw.Flush()
}
