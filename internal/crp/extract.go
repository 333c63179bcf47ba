package crp

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"crp-extractor/internal/binreader"
	"crp-extractor/internal/crypto"
	"crp-extractor/internal/texture"
)

// Sink receives the header once, then every asset in table order. Assets
// are not retained by the extractor after Asset returns.
type Sink interface {
	Header(h *Header) error
	Asset(a *Asset) error
}

// Stats summarizes one extraction pass.
type Stats struct {
	Assets   int `json:"assets"`
	Images   int `json:"images"`
	Meshes   int `json:"meshes"`
	Raw      int `json:"raw"`
	Null     int `json:"null"`
	Degraded int `json:"degraded"`
	// Failed counts assets the sink could not persist.
	Failed int  `json:"failed"`
	LUT    bool `json:"lut"`
}

func (s *Stats) add(a *Asset) {
	s.Assets++
	switch a.Kind {
	case KindImage:
		s.Images++
	case KindMesh:
		s.Meshes++
	case KindRaw:
		s.Raw++
	default:
		s.Null++
	}
	if a.Degraded() {
		s.Degraded++
	}
}

// Extractor drives header parsing and per-asset dispatch over one container.
type Extractor struct {
	Decrypter crypto.Decrypter
	Log       logrus.FieldLogger
}

// NewExtractor returns an Extractor; nil arguments get defaults.
func NewExtractor(log logrus.FieldLogger, dec crypto.Decrypter) *Extractor {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if dec == nil {
		dec = crypto.Plain{}
	}
	return &Extractor{Decrypter: dec, Log: log}
}

// Extract parses the container in src (size bytes long) and feeds sink.
// Only header failures (ErrFormat, ErrHeaderCorrupt) and a failing
// sink.Header are returned; per-asset problems are logged and counted.
func (x *Extractor) Extract(src io.ReaderAt, size int64, sink Sink) (*Header, *Stats, error) {
	h, err := ParseHeader(binreader.New(src, 0, size), x.Decrypter)
	if err != nil {
		return nil, nil, err
	}
	if h.AuthorErr != nil {
		x.Log.WithError(h.AuthorErr).Warn("author decryption failed")
	}
	x.Log.WithFields(logrus.Fields{
		"package": h.PackageName,
		"author":  h.AuthorName,
		"assets":  h.NumAssets,
		"lut":     h.IsLUT,
	}).Debug("header parsed")

	if err := sink.Header(h); err != nil {
		return h, nil, errors.Wrap(err, "crp: write header")
	}

	stats := &Stats{}
	if h.IsLUT {
		if i, ok := h.LUTEntry(); ok {
			stats.LUT = true
			x.deliver(sink, stats, x.extractLUT(src, size, h, i))
			return h, stats, nil
		}
		x.Log.Warnf("lookup-table container has no %q entry, extracting all assets", LUTDataMarker)
	}

	for i := range h.Assets {
		x.extractOne(src, size, h, i, sink, stats)
	}
	return h, stats, nil
}

func (x *Extractor) extractOne(src io.ReaderAt, size int64, h *Header, i int, sink Sink, stats *Stats) {
	e := h.Assets[i]
	log := x.Log.WithFields(logrus.Fields{"entry": i, "name": e.Name})
	defer func() {
		if p := recover(); p != nil {
			stats.Failed++
			log.Errorf("asset aborted: %v", p)
		}
	}()

	off := h.Offset(i)
	if !inStream(off, e.Size, size) {
		log.Warnf("declared span of %d bytes at %d exceeds stream of %d bytes", e.Size, off, size)
	}

	a := Dispatch(binreader.Clip(src, size, off, e.Size), i, e)
	x.deliver(sink, stats, a)
}

// extractLUT decodes entry i as a headerless image of its declared size.
// A panic while decoding still yields an asset, degraded to raw.
func (x *Extractor) extractLUT(src io.ReaderAt, size int64, h *Header, i int) (a *Asset) {
	e := h.Assets[i]
	a = &Asset{Index: i, Entry: e, Kind: KindImage, TypeKey: LUTTypeLabel, Name: e.Name, LUT: true}
	defer func() {
		if p := recover(); p != nil {
			a.Kind, a.Image = KindRaw, nil
			a.Err = &AssetDecodeError{Index: i, Name: e.Name, Err: errors.Errorf("decoder panic: %v", p)}
		}
	}()

	off := h.Offset(i)
	if !inStream(off, e.Size, size) {
		x.Log.WithField("entry", i).Warnf("declared span of %d bytes at %d exceeds stream of %d bytes", e.Size, off, size)
	}
	span := binreader.Clip(src, size, off, e.Size)
	payload, err := span.ReadBytes(span.Len())
	if err == nil && span.Len() < e.Size {
		err = errors.Errorf("declared %d bytes, stream holds %d", e.Size, span.Len())
	}
	if err != nil {
		a.Err = &AssetDecodeError{Index: i, Name: e.Name, Err: err}
	}
	a.Raw = payload
	if len(payload) == 0 {
		a.Kind = KindRaw
		a.Err = &AssetDecodeError{Index: i, Name: e.Name, Err: texture.ErrEmptyPayload}
		return a
	}
	a.Image = texture.DecodePayload(payload)
	return a
}

// inStream reports whether [off, off+n) lies inside a stream of size bytes.
// The comparison is arranged so a corrupt n cannot overflow.
func inStream(off, n, size int64) bool {
	return off >= 0 && n >= 0 && off <= size && n <= size-off
}

func (x *Extractor) deliver(sink Sink, stats *Stats, a *Asset) {
	stats.add(a)
	log := x.Log.WithFields(logrus.Fields{"entry": a.Index, "type": a.TypeKey, "name": a.Entry.Name})

	switch {
	case a.Err != nil:
		log.WithError(a.Err).Warnf("degraded to %s", a)
	case a.Kind == KindImage && a.Image.Err != nil:
		log.WithError(a.Image.Err).Warn("image replaced by placeholder")
	case a.Kind == KindMesh && a.Mesh.Degraded():
		for _, err := range a.Mesh.Errors {
			log.WithError(err).Warn("mesh attribute dropped")
		}
		log.Debugf("decoded %s", a)
	default:
		log.Debugf("decoded %s", a)
	}

	if err := sink.Asset(a); err != nil {
		stats.Failed++
		log.WithError(err).Error("write asset")
	}
}
