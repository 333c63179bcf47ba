package crp

import (
	"strings"

	"github.com/pkg/errors"

	"crp-extractor/internal/binreader"
	"crp-extractor/internal/mesh"
	"crp-extractor/internal/texture"
)

type decoder int

const (
	decodeRaw decoder = iota
	decodeImage
	decodeMesh
)

// decoders maps specific type keys to structured decoders. Keys not listed
// are copied as raw bytes.
var decoders = map[string]decoder{
	"UnityEngine.Texture2D": decodeImage,
	"UnityEngine.Mesh":      decodeMesh,
}

// TypeKey returns the specific type of a qualified type name: everything
// before the first comma.
func TypeKey(qualified string) string {
	if i := strings.IndexByte(qualified, ','); i >= 0 {
		return strings.TrimSpace(qualified[:i])
	}
	return strings.TrimSpace(qualified)
}

// Dispatch decodes the asset held in span, the cursor window over the
// entry's declared bytes. It always returns an asset: when structured
// decoding fails the whole span is returned as raw bytes with Err set.
func Dispatch(span *binreader.Reader, index int, e Entry) *Asset {
	a, err := dispatch(span, index, e)
	if err == nil {
		return a
	}

	fallback := &Asset{
		Index:         index,
		Entry:         e,
		Kind:          KindRaw,
		QualifiedType: a.QualifiedType,
		TypeKey:       a.TypeKey,
		Name:          a.Name,
		Err:           &AssetDecodeError{Index: index, Name: e.Name, Err: err},
	}
	if raw, rerr := readSpan(span); rerr == nil {
		fallback.Raw = raw
	}
	return fallback
}

func dispatch(span *binreader.Reader, index int, e Entry) (a *Asset, err error) {
	a = &Asset{Index: index, Entry: e}
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("decoder panic: %v", p)
		}
	}()

	present, err := span.ReadBool()
	if err != nil {
		return a, errors.Wrap(err, "presence flag")
	}
	if !present {
		a.Kind = KindNull
		a.Raw, err = readSpan(span)
		return a, err
	}

	if a.QualifiedType, err = span.ReadString(); err != nil {
		return a, errors.Wrap(err, "type name")
	}
	a.TypeKey = TypeKey(a.QualifiedType)
	if a.Name, err = span.ReadString(); err != nil {
		return a, errors.Wrap(err, "asset name")
	}

	remaining := e.Size - span.Pos()
	if remaining < 0 {
		return a, errors.Errorf("type header of %d bytes overruns declared size %d", span.Pos(), e.Size)
	}

	switch decoders[a.TypeKey] {
	case decodeImage:
		a.Kind = KindImage
		a.Image, err = texture.DecodeAsset(span, remaining)
		if err != nil {
			return a, err
		}
	case decodeMesh:
		a.Kind = KindMesh
		a.Mesh, err = mesh.Decode(span, remaining)
		if err != nil {
			return a, err
		}
		a.Mesh.Name = a.Name
	default:
		a.Kind = KindRaw
		if a.Raw, err = span.ReadBytes(remaining); err != nil {
			return a, errors.Wrap(err, "raw body")
		}
	}
	return a, nil
}

// readSpan reads the whole window from its start.
func readSpan(span *binreader.Reader) ([]byte, error) {
	if err := span.Seek(0); err != nil {
		return nil, err
	}
	return span.ReadBytes(span.Len())
}
