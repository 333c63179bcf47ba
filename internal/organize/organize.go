// Package organize sorts extracted artifacts into per-category folders using
// the header JSON written next to them.
package organize

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"crp-extractor/internal/crp"
)

// Categories, also the destination sub-directory names.
const (
	Texture  = "texture"
	Mesh     = "mesh"
	Material = "material"
	Other    = "other"
)

// DefaultDir is the output sub-directory used when none is given.
const DefaultDir = "organized"

var entryPattern = regexp.MustCompile(`_entry_(\d+|lut)_`)

// Item is one organized artifact.
type Item struct {
	File     string `json:"file"`
	Category string `json:"category"`
	Entry    int    `json:"entry"`
	Name     string `json:"name,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	// Skipped is set when the destination already existed.
	Skipped bool `json:"skipped,omitempty"`
}

// Index is written as index.json in the output directory.
type Index struct {
	Package    string              `json:"package"`
	Items      []Item              `json:"items"`
	ByChecksum map[string][]string `json:"byChecksum"`
}

// Run organizes the artifacts in inDir into outDir (inDir/organized when
// empty) and returns the written index.
func Run(inDir, outDir string, log logrus.FieldLogger) (*Index, error) {
	if outDir == "" {
		outDir = filepath.Join(inDir, DefaultDir)
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	files, err := os.ReadDir(inDir)
	if err != nil {
		return nil, errors.Wrap(err, "organize: read input")
	}
	var headerPath string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), "header.json") {
			headerPath = filepath.Join(inDir, f.Name())
			break
		}
	}
	if headerPath == "" {
		return nil, errors.Errorf("organize: no header.json in %s", inDir)
	}
	h, err := ReadHeader(headerPath)
	if err != nil {
		return nil, err
	}
	log.WithField("assets", len(h.Assets)).Debugf("loaded %s", filepath.Base(headerPath))

	idx := &Index{Package: h.PackageName, ByChecksum: map[string][]string{}}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		item := classify(f.Name(), h)
		dst := filepath.Join(outDir, item.Category, f.Name())
		copied, err := copyNew(filepath.Join(inDir, f.Name()), dst)
		if err != nil {
			return nil, err
		}
		item.Skipped = !copied
		if item.Skipped {
			log.Debugf("%s already exists, skipping copy", dst)
		}
		idx.Items = append(idx.Items, item)
		if item.Checksum != "" {
			rel := filepath.ToSlash(filepath.Join(item.Category, item.File))
			idx.ByChecksum[item.Checksum] = append(idx.ByChecksum[item.Checksum], rel)
		}
	}
	for _, v := range idx.ByChecksum {
		sort.Strings(v)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "organize: encode index")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.Wrap(err, "organize: create output")
	}
	if err := os.WriteFile(filepath.Join(outDir, "index.json"), data, 0644); err != nil {
		return nil, errors.Wrap(err, "organize: write index")
	}
	log.Infof("organized %d files into %s", len(idx.Items), outDir)
	return idx, nil
}

// ReadHeader loads a header JSON file. Files that are not valid UTF-8 are
// decoded as ISO-8859-1.
func ReadHeader(path string) (*crp.Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "organize: read header")
	}
	if !utf8.Valid(data) {
		if data, err = charmap.ISO8859_1.NewDecoder().Bytes(data); err != nil {
			return nil, errors.Wrap(err, "organize: decode latin-1 header")
		}
	}
	var h crp.Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, errors.Wrapf(err, "organize: parse %s", filepath.Base(path))
	}
	return &h, nil
}

func classify(name string, h *crp.Header) Item {
	item := Item{File: name, Entry: -1, Category: Other}
	ext := strings.ToLower(filepath.Ext(name))

	var typ crp.AssetType
	if m := entryPattern.FindStringSubmatch(name); m != nil {
		if m[1] == "lut" {
			if i, ok := h.LUTEntry(); ok {
				item.Entry = i
			}
		} else if i, err := strconv.Atoi(m[1]); err == nil && i < len(h.Assets) {
			item.Entry = i
		}
		if item.Entry >= 0 {
			e := h.Assets[item.Entry]
			item.Name, item.Checksum, typ = e.Name, e.Checksum, e.Type
		}
	}

	switch {
	case strings.Contains(name, "_preview."):
		item.Category = Mesh
	case ext == ".png" || ext == ".webp" || ext == ".jpg" || typ == crp.TypeTexture || typ == crp.TypeUserLUT:
		item.Category = Texture
	case ext == ".obj" || ext == ".glb" || typ == crp.TypeStaticMesh:
		item.Category = Mesh
	case typ == crp.TypeMaterial:
		item.Category = Material
	}
	return item
}

// copyNew copies src to dst unless dst exists. It reports whether a copy
// was made.
func copyNew(src, dst string) (bool, error) {
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, errors.Wrap(err, "organize: create directory")
	}
	in, err := os.Open(src)
	if err != nil {
		return false, errors.Wrap(err, "organize: open")
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return false, errors.Wrap(err, "organize: create")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, errors.Wrapf(err, "organize: copy %s", filepath.Base(src))
	}
	return true, errors.Wrap(out.Close(), "organize: close")
}
