package crp

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrFormat is returned when the magic marker does not match.
	ErrFormat = errors.New("crp: not a CRP container")
	// ErrHeaderCorrupt is returned for any failure inside the fixed header or table.
	ErrHeaderCorrupt = errors.New("crp: corrupt header")
)

// HeaderError locates a header parsing failure.
type HeaderError struct {
	Field string
	Err   error
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("crp: corrupt header at %s: %v", e.Field, e.Err)
}

func (e *HeaderError) Unwrap() error { return e.Err }

func (e *HeaderError) Is(target error) bool { return target == ErrHeaderCorrupt }

// AssetDecodeError is a structured decoding failure of one asset. The asset
// is still delivered, as raw bytes.
type AssetDecodeError struct {
	Index int
	Name  string
	Err   error
}

func (e *AssetDecodeError) Error() string {
	return fmt.Sprintf("crp: asset %d %q: %v", e.Index, e.Name, e.Err)
}

func (e *AssetDecodeError) Unwrap() error { return e.Err }

func headerErr(field string, err error) error {
	return &HeaderError{Field: field, Err: err}
}
