// Package loader materializes a static ELF64 executable as a new process
// through the kernel's capability interface.
package loader

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/models"
)

var (
	ErrMalformed = errors.New("malformed ELF image")
	// ErrAddressConflict is reported when a segment cannot land at its
	// absolute address, whether the kernel refused the fixed mapping or
	// placed it elsewhere.
	ErrAddressConflict = models.ErrAddressInUse
)

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformed, format, args...)
}

// SegmentError names the program header and kernel step that failed.
type SegmentError struct {
	Index int
	Seg   models.Segment
	Op    string
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d [%#x-%#x %s]: %s: %v", e.Index, e.Seg.Start, e.Seg.End, e.Seg.Perm, e.Op, e.Err)
}

func (e *SegmentError) Cause() error {
	return e.Err
}

// Image is a fully mapped process that has not been started.
type Image struct {
	Process  models.Handle
	Entry    uint64
	Segments []models.Segment
}
