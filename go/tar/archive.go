// Package tar indexes a USTAR image held in memory. Nothing is copied:
// entries and file contents are views into the caller's buffer.
package tar

import (
	"strings"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "unsupported"
	}
}

type Entry struct {
	Path     string
	Size     uint64
	Kind     Kind
	Mode     uint32
	Typeflag byte
	// Offset of the header record within the archive.
	Header uint64
	// Offset of the content within the archive, valid for KindFile.
	Offset uint64
}

// Footprint is the number of archive bytes the entry occupies.
func (e *Entry) Footprint() uint64 {
	return blockSize + blocks(e.Size)
}

type Archive struct {
	data []byte
}

func New(data []byte) *Archive {
	return &Archive{data: data}
}

func (a *Archive) Bytes() []byte {
	return a.data
}

// Entries returns a new iterator starting at the first header.
func (a *Archive) Entries() *Iter {
	return &Iter{data: a.data}
}

// Walk calls fn for every entry in archive order. It stops at the first
// error from fn or from the archive.
func (a *Archive) Walk(fn func(e *Entry) error) error {
	it := a.Entries()
	for it.Next() {
		if err := fn(it.Entry()); err != nil {
			return err
		}
	}
	return it.Err()
}

// List returns the paths starting with prefix in archive order. On a
// malformed archive it returns the paths found before the failure along
// with the error.
func (a *Archive) List(prefix string) ([]string, error) {
	var paths []string
	err := a.Walk(func(e *Entry) error {
		if strings.HasPrefix(e.Path, prefix) {
			paths = append(paths, e.Path)
		}
		return nil
	})
	return paths, err
}

// Stat returns the first entry whose normalized path equals path.
func (a *Archive) Stat(path string) (*Entry, error) {
	it := a.Entries()
	for it.Next() {
		if e := it.Entry(); e.Path == path {
			return e, nil
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return nil, errors.Wrap(ErrNotExist, path)
}

// Read returns the content of the file at path. The returned slice aliases
// the archive and is capped so appends cannot spill into it.
func (a *Archive) Read(path string) ([]byte, error) {
	e, err := a.Stat(path)
	if err != nil {
		return nil, err
	}
	switch e.Kind {
	case KindDir:
		return nil, errors.Wrap(ErrIsDir, path)
	case KindUnsupported:
		return nil, errors.Wrapf(ErrUnsupported, "%s (typeflag %q)", path, e.Typeflag)
	}
	if e.Size == 0 {
		return []byte{}, nil
	}
	end := e.Offset + e.Size
	return a.data[e.Offset:end:end], nil
}
