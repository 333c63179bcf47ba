package output

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crp-extractor/internal/crp"
	"crp-extractor/internal/crptest"
	"crp-extractor/internal/preview"
	"crp-extractor/internal/texture"
)

func shopContainer() []byte {
	return crptest.Container{
		PackageName: "Shop",
		MainAsset:   "Shop",
		Assets: []crptest.Asset{
			{Name: "wood", Checksum: "c0", Type: int32(crp.TypeTexture), Content: crptest.Object("UnityEngine.Texture2D, UnityEngine", "wood", crptest.TextureBody(crptest.PNG(4, 2)))},
			{Name: "tri", Checksum: "c1", Type: int32(crp.TypeStaticMesh), Content: crptest.Object("UnityEngine.Mesh, UnityEngine", "tri", crptest.TriangleMesh())},
			{Name: "gone", Checksum: "c2", Type: int32(crp.TypeObject), Content: []byte{0, 7}},
			{Name: "mat", Checksum: "c3", Type: int32(crp.TypeMaterial), Content: crptest.Object("UnityEngine.Material, UnityEngine", "mat", []byte("shader"))},
			{Name: "bad", Checksum: "c4", Type: int32(crp.TypeStaticMesh), Content: []byte{1, 0x7f, 'x'}},
		},
	}.Bytes()
}

func run(t *testing.T, data []byte, opts Options) *Writer {
	t.Helper()
	log, _ := test.NewNullLogger()
	w := New("shop", opts)
	_, stats, err := crp.NewExtractor(log, nil).Extract(bytes.NewReader(data), int64(len(data)), w)
	require.NoError(t, err)
	require.Zero(t, stats.Failed)
	return w
}

func listDir(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestWriterNaming(t *testing.T) {
	dir := t.TempDir()
	run(t, shopContainer(), Options{Dir: dir, MeshFormats: []string{MeshOBJ, MeshGLB}, WriteHeader: true, DumpNull: true})

	assert.Equal(t, []string{
		"shop_entry_0_UnityEngine.Texture2D.png",
		"shop_entry_1_UnityEngine.Mesh.glb",
		"shop_entry_1_UnityEngine.Mesh.obj",
		"shop_entry_2_raw.bin",
		"shop_entry_3_UnityEngine.Material.bin",
		"shop_entry_4_raw.bin",
		"shop_header.json",
	}, listDir(t, dir))

	raw, err := os.ReadFile(filepath.Join(dir, "shop_entry_3_UnityEngine.Material.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte("shader"), raw)

	f, err := os.Open(filepath.Join(dir, "shop_entry_0_UnityEngine.Texture2D.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
}

func TestWriterHeaderJSON(t *testing.T) {
	dir := t.TempDir()
	run(t, shopContainer(), Options{Dir: dir, WriteHeader: true})

	data, err := os.ReadFile(filepath.Join(dir, "shop_header.json"))
	require.NoError(t, err)
	var doc struct {
		PackageName string `json:"packageName"`
		AuthorName  string `json:"authorName"`
		NumAssets   int    `json:"numAssets"`
		Assets      []struct {
			Checksum string `json:"assetChecksum"`
			TypeName string `json:"assetTypeName"`
		} `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Shop", doc.PackageName)
	assert.Equal(t, crp.UnknownAuthor, doc.AuthorName)
	assert.Equal(t, 5, doc.NumAssets)
	require.Len(t, doc.Assets, 5)
	assert.Equal(t, "c3", doc.Assets[3].Checksum)
	assert.Equal(t, "Material", doc.Assets[3].TypeName)
}

func TestWriterDefaultsSkipNullAndGLB(t *testing.T) {
	dir := t.TempDir()
	run(t, shopContainer(), Options{Dir: dir, ImageFormat: texture.OutputWebP, MeshFormats: []string{"OBJ"}})

	assert.Equal(t, []string{
		"shop_entry_0_UnityEngine.Texture2D.webp",
		"shop_entry_1_UnityEngine.Mesh.obj",
		"shop_entry_3_UnityEngine.Material.bin",
		"shop_entry_4_raw.bin",
	}, listDir(t, dir))
}

func TestWriterDryRun(t *testing.T) {
	w := run(t, shopContainer(), Options{MeshFormats: []string{MeshOBJ}, WriteHeader: true})
	assert.True(t, w.DryRun())
	require.Len(t, w.Artifacts(), 5)
	assert.Equal(t, "shop_header.json", w.Artifacts()[0].Path)
	assert.Equal(t, "shop_entry_0_UnityEngine.Texture2D.png", w.Artifacts()[1].Path)
}

func TestWriterIsRepeatable(t *testing.T) {
	opts := Options{MeshFormats: []string{MeshOBJ, MeshGLB}, WriteHeader: true, DumpNull: true}
	a, b := t.TempDir(), t.TempDir()
	opts.Dir = a
	run(t, shopContainer(), opts)
	opts.Dir = b
	run(t, shopContainer(), opts)

	names := listDir(t, a)
	require.Equal(t, names, listDir(t, b))
	for _, n := range names {
		x, err := os.ReadFile(filepath.Join(a, n))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(b, n))
		require.NoError(t, err)
		assert.Equal(t, x, y, n)
	}
}

func TestWriterLUT(t *testing.T) {
	data := crptest.Container{
		Assets: []crptest.Asset{
			{Name: "grade_Data", Type: int32(crp.TypeUserLUT), Content: crptest.PNG(8, 8)},
		},
	}.Bytes()
	dir := t.TempDir()
	run(t, data, Options{Dir: dir})
	assert.Equal(t, []string{"shop_entry_lut_Texture2D.png"}, listDir(t, dir))
}

func TestWriterSkipsEmptyMesh(t *testing.T) {
	var body crptest.Buffer
	for i := 0; i < 8; i++ {
		body.I32(0)
	}
	data := crptest.Container{
		Assets: []crptest.Asset{
			{Name: "empty", Type: int32(crp.TypeStaticMesh), Content: crptest.Object("UnityEngine.Mesh", "empty", body.Bytes())},
		},
	}.Bytes()
	dir := t.TempDir()
	w := run(t, data, Options{Dir: dir, MeshFormats: []string{MeshOBJ}})
	assert.Empty(t, w.Artifacts())
	assert.Empty(t, listDir(t, dir))
}

func TestWriterPreview(t *testing.T) {
	dir := t.TempDir()
	w := run(t, shopContainer(), Options{Dir: dir, MeshFormats: []string{MeshPreview}, Preview: preview.Options{Size: 32}})

	var previews []Artifact
	for _, a := range w.Artifacts() {
		if a.Kind == "preview" {
			previews = append(previews, a)
		}
	}
	require.Len(t, previews, 1)
	assert.Equal(t, filepath.Join(dir, "shop_entry_1_UnityEngine.Mesh_preview.png"), previews[0].Path)

	f, err := os.Open(previews[0].Path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestContainerID(t *testing.T) {
	assert.Equal(t, "Bench 01", ContainerID("/tmp/in/Bench 01.crp"))
	assert.Equal(t, "plain", ContainerID("plain"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "A_B_C", sanitize("A/B:C"))
}
