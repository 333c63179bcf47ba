// Package output persists decoded container assets as individual files.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"crp-extractor/internal/crp"
	"crp-extractor/internal/preview"
	"crp-extractor/internal/texture"
)

// Mesh export formats. MeshPreview renders a shaded thumbnail in the image
// format.
const (
	MeshOBJ     = "obj"
	MeshGLB     = "glb"
	MeshPreview = "preview"
)

// Options controls which artifacts are written and where.
type Options struct {
	// Dir receives the artifacts. Empty means dry run: nothing is written.
	Dir         string
	ImageFormat texture.OutputFormat
	MeshFormats []string
	Preview     preview.Options
	WriteHeader bool
	// DumpNull writes the verbatim span of Null assets.
	DumpNull bool
}

func (o Options) meshFormat(name string) bool {
	for _, f := range o.MeshFormats {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// Artifact is one file produced (or, in dry run, planned) for an asset.
type Artifact struct {
	Entry int    `json:"entry"`
	Kind  string `json:"kind"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// Writer implements crp.Sink for one container.
type Writer struct {
	id        string
	opts      Options
	artifacts []Artifact
}

// New returns a Writer naming its files after the container id.
func New(id string, opts Options) *Writer {
	if opts.ImageFormat == "" {
		opts.ImageFormat = texture.OutputPNG
	}
	return &Writer{id: id, opts: opts}
}

// ContainerID derives the artifact prefix from an input path: the base name
// without extension.
func ContainerID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Artifacts returns what has been written so far.
func (w *Writer) Artifacts() []Artifact { return w.artifacts }

// DryRun reports whether the writer only counts.
func (w *Writer) DryRun() bool { return w.opts.Dir == "" }

func (w *Writer) Header(h *crp.Header) error {
	if w.opts.Dir != "" {
		if err := os.MkdirAll(w.opts.Dir, 0755); err != nil {
			return errors.Wrap(err, "output: create directory")
		}
	}
	if !w.opts.WriteHeader {
		return nil
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return errors.Wrap(err, "output: encode header")
	}
	return w.save(-1, "header", w.id+"_header.json", data)
}

func (w *Writer) Asset(a *crp.Asset) error {
	switch {
	case a.LUT:
		if a.Kind != crp.KindImage {
			return w.save(a.Index, "raw", w.entryName(a.Index, "raw", ".bin"), a.Raw)
		}
		return w.image(a, fmt.Sprintf("%s_entry_lut_%s%s", w.id, crp.LUTTypeLabel, w.opts.ImageFormat.Ext()))
	case a.Kind == crp.KindNull:
		if !w.opts.DumpNull {
			return nil
		}
		return w.save(a.Index, "raw", w.entryName(a.Index, "raw", ".bin"), a.Raw)
	case a.Err != nil:
		return w.save(a.Index, "raw", w.entryName(a.Index, "raw", ".bin"), a.Raw)
	case a.Kind == crp.KindImage:
		return w.image(a, w.entryName(a.Index, a.TypeKey, w.opts.ImageFormat.Ext()))
	case a.Kind == crp.KindMesh:
		return w.mesh(a)
	default:
		return w.save(a.Index, "raw", w.entryName(a.Index, a.TypeKey, ".bin"), a.Raw)
	}
}

func (w *Writer) image(a *crp.Asset, name string) error {
	var buf bytes.Buffer
	if err := texture.Encode(&buf, texture.Normalize(a.Image), w.opts.ImageFormat); err != nil {
		return err
	}
	return w.save(a.Index, "image", name, buf.Bytes())
}

func (w *Writer) mesh(a *crp.Asset) error {
	if !a.Mesh.Exportable() {
		return nil
	}
	if w.opts.meshFormat(MeshOBJ) {
		var buf bytes.Buffer
		if err := a.Mesh.ExportObj(&buf); err != nil {
			return errors.Wrap(err, "output: obj")
		}
		if err := w.save(a.Index, "mesh", w.entryName(a.Index, a.TypeKey, ".obj"), buf.Bytes()); err != nil {
			return err
		}
	}
	if w.opts.meshFormat(MeshGLB) {
		var buf bytes.Buffer
		if err := a.Mesh.ExportGLB(&buf); err != nil {
			return errors.Wrap(err, "output: glb")
		}
		if err := w.save(a.Index, "mesh", w.entryName(a.Index, a.TypeKey, ".glb"), buf.Bytes()); err != nil {
			return err
		}
	}
	if w.opts.meshFormat(MeshPreview) {
		img, err := preview.Render(a.Mesh, w.opts.Preview)
		if errors.Is(err, preview.ErrNothingToDraw) {
			return nil
		}
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := texture.Encode(&buf, img, w.opts.ImageFormat); err != nil {
			return err
		}
		return w.save(a.Index, "preview", w.entryName(a.Index, a.TypeKey+"_preview", w.opts.ImageFormat.Ext()), buf.Bytes())
	}
	return nil
}

func (w *Writer) entryName(i int, label, ext string) string {
	if label == "" {
		label = "raw"
	}
	return fmt.Sprintf("%s_entry_%d_%s%s", w.id, i, sanitize(label), ext)
}

func (w *Writer) save(entry int, kind, name string, data []byte) error {
	art := Artifact{Entry: entry, Kind: kind, Path: name, Bytes: int64(len(data))}
	if w.opts.Dir != "" {
		art.Path = filepath.Join(w.opts.Dir, name)
		if err := writeFile(art.Path, bytes.NewReader(data)); err != nil {
			return err
		}
	}
	w.artifacts = append(w.artifacts, art)
	return nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "output: create")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrapf(err, "output: write %s", filepath.Base(path))
	}
	return errors.Wrap(f.Close(), "output: close")
}

// sanitize keeps type labels usable as file name components.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', ',':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, s)
}
