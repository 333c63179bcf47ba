package mesh

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ExportGLTF builds a document with one primitive per submesh sharing the
// vertex streams.
func (m *Mesh) ExportGLTF() (*gltf.Document, error) {
	if !m.Exportable() {
		return nil, errors.New("mesh: no vertices to export")
	}
	doc := gltf.NewDocument()
	nv := len(m.Vertices)

	attributes := make(map[string]uint32)
	{
		positions := make([][3]float32, nv)
		for i, v := range m.Vertices {
			positions[i] = [3]float32(v)
		}
		attributes["POSITION"] = modeler.WritePosition(doc, positions)
	}
	if len(m.Normals) == nv {
		normals := make([][3]float32, nv)
		for i, n := range m.Normals {
			if n.Len() > 0.5 {
				n = n.Normalize()
			}
			normals[i] = [3]float32(n)
		}
		attributes["NORMAL"] = modeler.WriteNormal(doc, normals)
	}
	if len(m.UVs) == nv {
		uvs := make([][2]float32, nv)
		for i, uv := range m.UVs {
			uvs[i] = [2]float32{uv[0], 1 - uv[1]}
		}
		attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(doc, uvs)
	}
	if len(m.Tangents) == nv {
		tangents := make([][4]float32, nv)
		for i, t := range m.Tangents {
			tangents[i] = [4]float32(t)
		}
		attributes["TANGENT"] = modeler.WriteTangent(doc, tangents)
	}
	if len(m.Colors) == nv {
		colors := make([][4]uint8, nv)
		for i, c := range m.Colors {
			colors[i] = [4]uint8{unorm8(c[0]), unorm8(c[1]), unorm8(c[2]), unorm8(c[3])}
		}
		attributes["COLOR_0"] = modeler.WriteColor(doc, colors)
	}

	gltfMesh := &gltf.Mesh{Name: m.Name}
	for iSub := range m.SubMeshes {
		indices := make([]uint32, 0, m.SubMeshes[iSub][1]-m.SubMeshes[iSub][0])
		tris := m.SubMesh(iSub)
		for i := 0; i+3 <= len(tris); i += 3 {
			if int(tris[i]) < nv && int(tris[i+1]) < nv && int(tris[i+2]) < nv {
				indices = append(indices, tris[i:i+3]...)
			}
		}
		if len(indices) == 0 {
			continue
		}
		gltfMesh.Primitives = append(gltfMesh.Primitives, &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
			Attributes: attributes,
		})
	}
	if len(gltfMesh.Primitives) == 0 {
		gltfMesh.Primitives = append(gltfMesh.Primitives, &gltf.Primitive{
			Mode:       gltf.PrimitivePoints,
			Attributes: attributes,
		})
	}

	doc.Meshes = append(doc.Meshes, gltfMesh)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)))
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: fmt.Sprintf("%s_node", m.Name),
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	})
	return doc, nil
}

// ExportGLB writes the mesh as binary glTF.
func (m *Mesh) ExportGLB(w io.Writer) error {
	doc, err := m.ExportGLTF()
	if err != nil {
		return err
	}
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return errors.Wrap(encoder.Encode(doc), "mesh: encode glb")
}

func unorm8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xff
	}
	return uint8(v*255 + 0.5)
}
