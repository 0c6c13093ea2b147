// Package image opens boot archive files for the harness. Plain archives
// are mapped read-only; snappy framed archives are decoded into memory.
package image

import (
	"bytes"
	"io/ioutil"
	"os"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// stream identifier chunk that starts every snappy framed stream
var snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")

type Image struct {
	Data       []byte
	Compressed bool
	mapped     bool
}

func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat archive")
	}
	if fi.Size() == 0 {
		return &Image{Data: []byte{}}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap archive")
	}
	if !bytes.HasPrefix(data, snappyMagic) {
		return &Image{Data: data, mapped: true}, nil
	}
	defer unix.Munmap(data)
	dec, err := ioutil.ReadAll(snappy.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, errors.Wrap(err, "snappy decode")
	}
	return &Image{Data: dec, Compressed: true}, nil
}

func (i *Image) Close() error {
	if !i.mapped {
		return nil
	}
	i.mapped = false
	data := i.Data
	i.Data = nil
	return errors.Wrap(unix.Munmap(data), "munmap archive")
}

// Compress writes data as a snappy framed stream to path.
func Compress(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create")
	}
	zw := snappy.NewBufferedWriter(f)
	if _, err := zw.Write(data); err != nil {
		f.Close()
		return errors.Wrap(err, "snappy encode")
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return errors.Wrap(err, "snappy flush")
	}
	return f.Close()
}
