package tar

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrMalformed   = errors.New("malformed tar archive")
	ErrBadSize     = errors.New("invalid tar size field")
	ErrNotExist    = errors.New("no such archive entry")
	ErrIsDir       = errors.New("archive entry is a directory")
	ErrUnsupported = errors.New("unsupported archive entry type")
)

// HeaderError locates a structural or decoding failure in the archive.
// errors.Cause() returns ErrMalformed or ErrBadSize.
type HeaderError struct {
	Offset uint64
	Reason string
	Err    error
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%v at offset %#x: %s", e.Err, e.Offset, e.Reason)
}

func (e *HeaderError) Cause() error {
	return e.Err
}
