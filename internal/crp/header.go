package crp

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"crp-extractor/internal/binreader"
	"crp-extractor/internal/crypto"
)

// Magic opens every container.
const Magic = "CRAP"

// LUTDataMarker identifies the payload entry of a lookup-table container.
const LUTDataMarker = "_Data"

// UnknownAuthor replaces an empty author field.
const UnknownAuthor = "Unknown"

// minEntrySize is the smallest possible table record: two empty strings'
// length prefixes plus type, offset and size.
const minEntrySize = 1 + 1 + 4 + 8 + 8

// AssetType is the table entry type tag.
type AssetType int32

const (
	TypeObject     AssetType = 1
	TypeMaterial   AssetType = 2
	TypeTexture    AssetType = 3
	TypeStaticMesh AssetType = 4
	TypeText       AssetType = 5
	TypeAssembly   AssetType = 6
	TypeData       AssetType = 7
	TypeLocale     AssetType = 8
	TypeUserLUT    AssetType = 9
	TypeUser       AssetType = 100
)

var assetTypeNames = map[AssetType]string{
	TypeObject:     "Object",
	TypeMaterial:   "Material",
	TypeTexture:    "Texture",
	TypeStaticMesh: "StaticMesh",
	TypeText:       "Text",
	TypeAssembly:   "Assembly",
	TypeData:       "Data",
	TypeLocale:     "Locale",
	TypeUserLUT:    "UserLut",
	TypeUser:       "User",
}

func (t AssetType) String() string {
	if s, ok := assetTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%d)", int32(t))
}

// Entry is one record of the asset table. OffsetBegin is relative to
// Header.ContentBeginIndex.
type Entry struct {
	Name        string    `json:"assetName"`
	Checksum    string    `json:"assetChecksum"`
	Type        AssetType `json:"assetType"`
	TypeName    string    `json:"assetTypeName"`
	OffsetBegin int64     `json:"assetOffsetBegin"`
	Size        int64     `json:"assetSize"`
}

// Header is the container header and asset table.
type Header struct {
	FormatVersion     uint16  `json:"formatVersion"`
	PackageName       string  `json:"packageName"`
	AuthorName        string  `json:"authorName"`
	PkgVersion        uint32  `json:"pkgVersion"`
	MainAssetName     string  `json:"mainAssetName"`
	NumAssets         int32   `json:"numAssets"`
	ContentBeginIndex int64   `json:"contentBeginIndex"`
	Assets            []Entry `json:"assets"`
	IsLUT             bool    `json:"isLut"`

	// AuthorErr is set when the author could not be decrypted; AuthorName
	// then holds UnknownAuthor.
	AuthorErr error `json:"-"`
}

// Offset returns the absolute stream position of entry i.
func (h *Header) Offset(i int) int64 {
	return h.ContentBeginIndex + h.Assets[i].OffsetBegin
}

// LUTEntry returns the index of the first entry whose name carries the
// lookup-table data marker.
func (h *Header) LUTEntry() (int, bool) {
	for i, e := range h.Assets {
		if strings.Contains(e.Name, LUTDataMarker) {
			return i, true
		}
	}
	return -1, false
}

// ParseHeader reads the header and table from a cursor at byte 0. It is
// all-or-nothing: on error no header is returned.
func ParseHeader(r *binreader.Reader, dec crypto.Decrypter) (*Header, error) {
	magic, err := r.ReadBytes(int64(len(Magic)))
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "read magic: %v", err)
	}
	if string(magic) != Magic {
		return nil, errors.Wrapf(ErrFormat, "magic %q", magic)
	}

	h := &Header{}
	if h.FormatVersion, err = r.ReadU16(); err != nil {
		return nil, headerErr("formatVersion", err)
	}
	if h.PackageName, err = r.ReadString(); err != nil {
		return nil, headerErr("packageName", err)
	}
	encAuthor, err := r.ReadString()
	if err != nil {
		return nil, headerErr("authorName", err)
	}
	h.AuthorName = UnknownAuthor
	if encAuthor != "" {
		if dec == nil {
			dec = crypto.Plain{}
		}
		author, err := dec.Decrypt(encAuthor)
		switch {
		case err != nil:
			h.AuthorErr = err
		case author != "":
			h.AuthorName = author
		}
	}
	if h.PkgVersion, err = r.ReadU32(); err != nil {
		return nil, headerErr("pkgVersion", err)
	}
	if h.MainAssetName, err = r.ReadString(); err != nil {
		return nil, headerErr("mainAssetName", err)
	}
	if h.NumAssets, err = r.ReadI32(); err != nil {
		return nil, headerErr("numAssets", err)
	}
	if h.ContentBeginIndex, err = r.ReadI64(); err != nil {
		return nil, headerErr("contentBeginIndex", err)
	}
	if h.NumAssets < 0 || int64(h.NumAssets)*minEntrySize > r.Remaining() {
		return nil, headerErr("numAssets", errors.Errorf("implausible count %d for %d remaining bytes", h.NumAssets, r.Remaining()))
	}
	if h.ContentBeginIndex < r.Pos() || h.ContentBeginIndex > r.Len() {
		return nil, headerErr("contentBeginIndex", errors.Errorf("offset %d outside stream of %d bytes", h.ContentBeginIndex, r.Len()))
	}

	h.Assets = make([]Entry, h.NumAssets)
	for i := range h.Assets {
		if err := readEntry(r, &h.Assets[i]); err != nil {
			return nil, headerErr(fmt.Sprintf("assets[%d]", i), err)
		}
		if h.Assets[i].Type == TypeUserLUT {
			h.IsLUT = true
		}
	}
	return h, nil
}

func readEntry(r *binreader.Reader, e *Entry) error {
	var err error
	if e.Name, err = r.ReadString(); err != nil {
		return errors.Wrap(err, "name")
	}
	if e.Checksum, err = r.ReadString(); err != nil {
		return errors.Wrap(err, "checksum")
	}
	t, err := r.ReadI32()
	if err != nil {
		return errors.Wrap(err, "type")
	}
	e.Type = AssetType(t)
	e.TypeName = e.Type.String()
	if e.OffsetBegin, err = r.ReadI64(); err != nil {
		return errors.Wrap(err, "offset")
	}
	if e.Size, err = r.ReadI64(); err != nil {
		return errors.Wrap(err, "size")
	}
	return nil
}
