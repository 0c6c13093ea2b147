package cpu

import (
	"fmt"
	"strings"
)

// Page is one contiguous mapping. Data may be shared with a memory object
// and with other pages cut from the same mapping.
type Page struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte

	Desc string
}

func (p *Page) String() string {
	prot := []byte("---")
	for i, bit := range []int{PROT_READ, PROT_WRITE, PROT_EXEC} {
		if p.Prot&bit != 0 {
			prot[i] = "rwx"[i]
		}
	}
	desc := fmt.Sprintf("0x%x-0x%x %s", p.Addr, p.Addr+p.Size, prot)
	if p.Desc != "" {
		desc += fmt.Sprintf(" [%s]", p.Desc)
	}
	return desc
}

func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr < p.Addr+p.Size
}

// Intersect returns the part of addr:addr+size inside p.
func (p *Page) Intersect(addr, size uint64) (uint64, uint64, bool) {
	start, end := p.Addr, p.Addr+p.Size
	if addr > start {
		start = addr
	}
	if e := addr + size; e < end {
		end = e
	}
	if end <= start {
		return 0, 0, false
	}
	return start, end - start, true
}

func (p *Page) Overlaps(addr, size uint64) bool {
	_, _, ok := p.Intersect(addr, size)
	return ok
}

// slice shares Data with p, so a split shared mapping stays shared
func (p *Page) slice(addr, size uint64) *Page {
	o := addr - p.Addr
	return &Page{Addr: addr, Size: size, Prot: p.Prot, Data: p.Data[o : o+size : o+size], Desc: p.Desc}
}

// Split narrows p to addr:addr+size, which must lie inside p, and returns
// the pieces left over on either side (nil when empty).
//
//	[-left-][----p----][-right-]
//	        addr       addr+size
func (p *Page) Split(addr, size uint64) (left, right *Page) {
	end := p.Addr + p.Size
	if addr > p.Addr {
		left = p.slice(p.Addr, addr-p.Addr)
	}
	if addr+size < end {
		right = p.slice(addr+size, end-addr-size)
	}
	*p = *p.slice(addr, size)
	return left, right
}

type Pages []*Page

func (p Pages) Len() int           { return len(p) }
func (p Pages) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Pages) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Pages) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// bsearch returns the index of the first page ending after addr, and the
// index of the page containing addr or -1.
func (p Pages) bsearch(addr uint64) (int, int) {
	l, r := 0, len(p)
	for l < r {
		mid := (l + r) / 2
		if p[mid].Addr+p[mid].Size <= addr {
			l = mid + 1
		} else {
			r = mid
		}
	}
	if l < len(p) && p[l].Contains(addr) {
		return l, l
	}
	return l, -1
}

func (p Pages) Find(addr uint64) *Page {
	if _, i := p.bsearch(addr); i >= 0 {
		return p[i]
	}
	return nil
}

// FindRange returns every page overlapping addr:addr+size.
func (p Pages) FindRange(addr, size uint64) Pages {
	first, _ := p.bsearch(addr)
	var ret Pages
	for _, pg := range p[first:] {
		if !pg.Overlaps(addr, size) {
			break
		}
		ret = append(ret, pg)
	}
	return ret
}
