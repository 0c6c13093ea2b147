package loader

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sereneos/initsys/go/logflags"
	"github.com/sereneos/initsys/go/models"
)

// Load parses data and maps it into a new process. Malformed input fails
// before any kernel call is made.
func Load(k models.Kernel, data []byte) (*Image, error) {
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return f.Load(k)
}

// Load creates a process and maps every LOAD segment at its absolute
// address, in file order. On failure every handle created here is
// destroyed, so the caller gets either a complete image or nothing.
func (f *File) Load(k models.Kernel) (img *Image, err error) {
	log := logflags.LoaderLogger()
	proc, err := k.ProcessCreateEmpty()
	if err != nil {
		return nil, errors.Wrap(err, "process_create_empty")
	}
	owned := []models.Handle{proc}
	defer func() {
		if err == nil {
			return
		}
		// objects first, the process last
		for i := len(owned) - 1; i >= 0; i-- {
			if derr := k.Destroy(owned[i]); derr != nil {
				log.WithError(derr).Warnf("destroy handle %d", owned[i])
			}
		}
	}()

	img = &Image{Process: proc, Entry: f.Header.Entry}
	for i, seg := range f.Plan() {
		log.WithFields(logrus.Fields{"segment": i}).Debugf("map %s", &seg)
		obj, err := k.MemobjCreate(seg.Size(), seg.Perm)
		if err != nil {
			return nil, &SegmentError{Index: i, Seg: seg, Op: "memobj_create", Err: err}
		}
		owned = append(owned, obj)
		addr, err := k.Map(proc, obj, seg.Start, seg.Perm, models.MapFixed)
		if err != nil {
			return nil, &SegmentError{Index: i, Seg: seg, Op: "map", Err: err}
		}
		if addr != seg.Start {
			return nil, &SegmentError{Index: i, Seg: seg, Op: "map", Err: errors.Wrapf(ErrAddressConflict, "landed at %#x", addr)}
		}
		// content goes at the unaligned vaddr; the rest of the fresh
		// memory object is already zero
		if seg.FileSize > 0 {
			if err := k.CopyTo(proc, seg.Addr, f.segmentData(&seg)); err != nil {
				return nil, &SegmentError{Index: i, Seg: seg, Op: "copy_to", Err: err}
			}
		}
		img.Segments = append(img.Segments, seg)
	}
	log.Debugf("loaded %d segments, entry %#x", len(img.Segments), img.Entry)
	return img, nil
}
