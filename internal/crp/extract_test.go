package crp

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crp-extractor/internal/binreader"
	"crp-extractor/internal/crptest"
	"crp-extractor/internal/texture"
)

type memSink struct {
	header    *Header
	assets    []*Asset
	assetErr  error
	headerErr error
}

func (s *memSink) Header(h *Header) error {
	s.header = h
	return s.headerErr
}

func (s *memSink) Asset(a *Asset) error {
	s.assets = append(s.assets, a)
	return s.assetErr
}

func mixedContainer() crptest.Container {
	return crptest.Container{
		FormatVersion: 6,
		PackageName:   "Shop",
		PkgVersion:    1,
		MainAsset:     "Shop",
		Assets: []crptest.Asset{
			{Name: "wood", Checksum: "01", Type: int32(TypeTexture), Content: crptest.Object("UnityEngine.Texture2D, UnityEngine", "wood", crptest.TextureBody(crptest.PNG(4, 2)))},
			{Name: "tri", Checksum: "02", Type: int32(TypeStaticMesh), Content: crptest.Object("UnityEngine.Mesh, UnityEngine", "tri", crptest.TriangleMesh())},
			{Name: "gone", Checksum: "03", Type: int32(TypeObject), Content: []byte{0, 9, 9}},
			{Name: "mat", Checksum: "04", Type: int32(TypeMaterial), Content: crptest.Object("UnityEngine.Material, UnityEngine", "mat", []byte("abc"))},
		},
	}
}

func extract(t *testing.T, data []byte) (*memSink, *Stats, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	sink := &memSink{}
	_, stats, err := NewExtractor(log, nil).Extract(bytes.NewReader(data), int64(len(data)), sink)
	require.NoError(t, err)
	return sink, stats, hook
}

func TestTypeKey(t *testing.T) {
	assert.Equal(t, "UnityEngine.Mesh", TypeKey("UnityEngine.Mesh, UnityEngine, Version=0.0.0.0"))
	assert.Equal(t, "Foo", TypeKey(" Foo "))
	assert.Equal(t, "", TypeKey(""))
}

func TestExtractMixed(t *testing.T) {
	sink, stats, _ := extract(t, mixedContainer().Bytes())
	require.NotNil(t, sink.header)
	require.Len(t, sink.assets, 4)

	img := sink.assets[0]
	require.Equal(t, KindImage, img.Kind)
	assert.Equal(t, "UnityEngine.Texture2D", img.TypeKey)
	assert.Equal(t, texture.FormatPNG, img.Image.Format)
	assert.Equal(t, 4, img.Image.Bounds().Dx())
	assert.Equal(t, 2, img.Image.Bounds().Dy())

	m := sink.assets[1]
	require.Equal(t, KindMesh, m.Kind)
	assert.Equal(t, "tri", m.Mesh.Name)
	assert.Len(t, m.Mesh.Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2}, m.Mesh.SubMesh(0))

	null := sink.assets[2]
	assert.Equal(t, KindNull, null.Kind)
	assert.Equal(t, []byte{0, 9, 9}, null.Raw)

	raw := sink.assets[3]
	assert.Equal(t, KindRaw, raw.Kind)
	assert.Equal(t, "UnityEngine.Material", raw.TypeKey)
	assert.Equal(t, []byte("abc"), raw.Raw)
	assert.NoError(t, raw.Err)

	for i, a := range sink.assets {
		assert.Equal(t, i, a.Index)
		assert.False(t, a.Degraded(), "asset %d", i)
	}
	assert.Equal(t, Stats{Assets: 4, Images: 1, Meshes: 1, Raw: 1, Null: 1}, *stats)
}

func TestExtractCorruptEntryFallsBackToRaw(t *testing.T) {
	c := mixedContainer()
	var bad crptest.Buffer
	bad.Bool(true).Raw([]byte{0x7f}).Raw([]byte("UnityEngine.Mesh"))
	c.Assets[1].Content = bad.Bytes()

	sink, stats, hook := extract(t, c.Bytes())
	require.Len(t, sink.assets, 4)

	a := sink.assets[1]
	assert.Equal(t, KindRaw, a.Kind)
	assert.Equal(t, bad.Bytes(), a.Raw)
	var de *AssetDecodeError
	require.True(t, errors.As(a.Err, &de))
	assert.Equal(t, 1, de.Index)
	assert.Equal(t, "tri", de.Name)

	assert.Equal(t, KindImage, sink.assets[0].Kind)
	assert.Equal(t, KindNull, sink.assets[2].Kind)
	assert.Equal(t, KindRaw, sink.assets[3].Kind)
	assert.Equal(t, 1, stats.Degraded)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestExtractDeclaredSizeTooSmall(t *testing.T) {
	c := mixedContainer()
	c.Assets[3].SizeDelta = -int64(len(c.Assets[3].Content)) + 2

	sink, _, _ := extract(t, c.Bytes())
	a := sink.assets[3]
	assert.Equal(t, KindRaw, a.Kind)
	assert.Error(t, a.Err)
	assert.Equal(t, c.Assets[3].Content[:2], a.Raw)
}

func TestExtractDeclaredSizePastEOF(t *testing.T) {
	c := mixedContainer()
	c.Assets = c.Assets[:1]
	c.Assets[0].SizeDelta = 100

	sink, stats, hook := extract(t, c.Bytes())
	require.Len(t, sink.assets, 1)
	a := sink.assets[0]
	assert.Equal(t, KindRaw, a.Kind)
	assert.Error(t, a.Err)
	assert.Equal(t, c.Assets[0].Content, a.Raw)
	assert.Equal(t, 1, stats.Raw)

	var warned bool
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, "exceeds stream") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestExtractHugeDeclaredSize(t *testing.T) {
	c := mixedContainer()
	c.Assets[3].SizeDelta = math.MaxInt64 - int64(len(c.Assets[3].Content))

	sink, stats, hook := extract(t, c.Bytes())
	require.Len(t, sink.assets, 4)
	a := sink.assets[3]
	assert.Equal(t, KindRaw, a.Kind)
	assert.Equal(t, c.Assets[3].Content, a.Raw)
	var de *AssetDecodeError
	assert.True(t, errors.As(a.Err, &de))
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 1, stats.Raw)

	var warned bool
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, "exceeds stream") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestDispatchTruncatedPresenceFlag(t *testing.T) {
	span := binreader.New(bytes.NewReader(nil), 0, 0)
	a := Dispatch(span, 0, Entry{Name: "empty"})
	assert.Equal(t, KindRaw, a.Kind)
	assert.Error(t, a.Err)
	assert.Empty(t, a.Raw)
}

func TestExtractLUT(t *testing.T) {
	c := crptest.Container{
		PackageName: "Grade",
		Assets: []crptest.Asset{
			{Name: "Grade", Type: int32(TypeObject), Content: []byte{0xff, 0xff}},
			{Name: "Grade_Data", Type: int32(TypeUserLUT), Content: crptest.PNG(16, 16)},
		},
	}
	sink, stats, _ := extract(t, c.Bytes())

	assert.True(t, sink.header.IsLUT)
	require.Len(t, sink.assets, 1)
	a := sink.assets[0]
	assert.True(t, a.LUT)
	assert.Equal(t, 1, a.Index)
	assert.Equal(t, KindImage, a.Kind)
	assert.Equal(t, LUTTypeLabel, a.TypeKey)
	assert.Equal(t, texture.FormatPNG, a.Image.Format)
	assert.Equal(t, 16, a.Image.Bounds().Dx())
	assert.True(t, stats.LUT)
	assert.Equal(t, 1, stats.Assets)
}

func TestExtractLUTHugeDeclaredSize(t *testing.T) {
	png := crptest.PNG(8, 8)
	c := crptest.Container{
		Assets: []crptest.Asset{
			{Name: "Grade_Data", Type: int32(TypeUserLUT), Content: png, SizeDelta: math.MaxInt64 - int64(len(png))},
		},
	}
	sink, stats, _ := extract(t, c.Bytes())
	require.Len(t, sink.assets, 1)
	a := sink.assets[0]
	assert.True(t, a.LUT)
	assert.Equal(t, KindImage, a.Kind)
	assert.Equal(t, texture.FormatPNG, a.Image.Format)
	assert.Error(t, a.Err)
	assert.Equal(t, 1, stats.Degraded)
}

func TestExtractLUTWithoutDataEntry(t *testing.T) {
	c := crptest.Container{
		Assets: []crptest.Asset{
			{Name: "grade", Type: int32(TypeUserLUT), Content: crptest.Object("Custom.Lut, Custom", "grade", []byte{1})},
			{Name: "other", Type: int32(TypeObject), Content: []byte{0}},
		},
	}
	sink, stats, hook := extract(t, c.Bytes())
	assert.Len(t, sink.assets, 2)
	assert.False(t, stats.LUT)
	require.NotEmpty(t, hook.AllEntries())
	assert.Contains(t, hook.AllEntries()[0].Message, LUTDataMarker)
}

func TestExtractHeaderErrors(t *testing.T) {
	log, _ := test.NewNullLogger()
	x := NewExtractor(log, nil)

	data := []byte("NOPE and then some")
	_, stats, err := x.Extract(bytes.NewReader(data), int64(len(data)), &memSink{})
	assert.True(t, errors.Is(err, ErrFormat))
	assert.Nil(t, stats)

	data = mixedContainer().Bytes()
	sink := &memSink{headerErr: errors.New("disk full")}
	_, _, err = x.Extract(bytes.NewReader(data), int64(len(data)), sink)
	assert.Error(t, err)
	assert.Empty(t, sink.assets)
}

func TestExtractSinkFailuresAreCounted(t *testing.T) {
	log, _ := test.NewNullLogger()
	data := mixedContainer().Bytes()
	sink := &memSink{assetErr: errors.New("read-only")}

	_, stats, err := NewExtractor(log, nil).Extract(bytes.NewReader(data), int64(len(data)), sink)
	require.NoError(t, err)
	assert.Len(t, sink.assets, 4)
	assert.Equal(t, 4, stats.Failed)
}

func TestExtractIsRepeatable(t *testing.T) {
	data := mixedContainer().Bytes()
	first, _, _ := extract(t, data)
	second, _, _ := extract(t, data)
	assert.Equal(t, first.header, second.header)
	assert.Equal(t, first.assets, second.assets)
}
