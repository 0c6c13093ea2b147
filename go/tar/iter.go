package tar

// Iter walks the archive one header at a time. Iteration ends at the first
// all-zero name field or when the buffer is exhausted.
type Iter struct {
	data []byte
	off  uint64
	cur  *Entry
	err  error
	done bool
}

func (it *Iter) Next() bool {
	if it.done {
		return false
	}
	e, err := it.next()
	if err != nil {
		it.err = err
	}
	if e == nil {
		it.done = true
		it.cur = nil
		return false
	}
	it.cur = e
	return true
}

func (it *Iter) Entry() *Entry {
	return it.cur
}

func (it *Iter) Err() error {
	return it.err
}

func (it *Iter) next() (*Entry, error) {
	size := uint64(len(it.data))
	if it.off >= size {
		return nil, nil
	}
	if size-it.off < blockSize {
		return nil, &HeaderError{Offset: it.off, Reason: "truncated header", Err: ErrMalformed}
	}
	h, err := decodeHeader(it.data[it.off : it.off+blockSize])
	if err != nil {
		return nil, &HeaderError{Offset: it.off, Reason: err.Error(), Err: ErrMalformed}
	}
	if h.end() {
		return nil, nil
	}
	name := cstring(h.Name)
	if name == "" {
		return nil, &HeaderError{Offset: it.off, Reason: "empty name", Err: ErrMalformed}
	}
	n, ok := parseOctal(h.Size)
	if !ok {
		return nil, &HeaderError{Offset: it.off, Reason: "size " + cstring(h.Size), Err: ErrBadSize}
	}
	mode, _ := parseOctal(h.Mode)
	e := &Entry{
		Path:     normalize(name),
		Size:     n,
		Mode:     uint32(mode),
		Typeflag: h.Typeflag,
		Header:   it.off,
		Offset:   it.off + blockSize,
	}
	switch h.Typeflag {
	case typeRegular, typeRegularOld:
		e.Kind = KindFile
	case typeDirectory:
		e.Kind = KindDir
	default:
		e.Kind = KindUnsupported
	}
	if n > size-e.Offset {
		return nil, &HeaderError{Offset: it.off, Reason: "content extends past end of archive", Err: ErrMalformed}
	}
	it.off = e.Offset + blocks(n)
	return e, nil
}
