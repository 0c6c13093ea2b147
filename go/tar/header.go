package tar

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/lunixbochs/struc"
)

const blockSize = 512

const (
	typeRegular    = '0'
	typeRegularOld = '\x00'
	typeDirectory  = '5'
)

// header is the USTAR header record. Only name, mode, size and typeflag
// are interpreted.
type header struct {
	Name     string `struc:"[100]byte"`
	Mode     string `struc:"[8]byte"`
	Uid      string `struc:"[8]byte"`
	Gid      string `struc:"[8]byte"`
	Size     string `struc:"[12]byte"`
	Mtime    string `struc:"[12]byte"`
	Chksum   string `struc:"[8]byte"`
	Typeflag uint8
	Linkname string `struc:"[100]byte"`
	Magic    string `struc:"[6]byte"`
	Version  string `struc:"[2]byte"`
	Uname    string `struc:"[32]byte"`
	Gname    string `struc:"[32]byte"`
	Devmajor string `struc:"[8]byte"`
	Devminor string `struc:"[8]byte"`
	Prefix   string `struc:"[155]byte"`
	Pad      string `struc:"[12]byte"`
}

// decodeHeader expects exactly one block.
func decodeHeader(block []byte) (*header, error) {
	var h header
	if err := struc.Unpack(bytes.NewReader(block), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (h *header) end() bool {
	return strings.Trim(h.Name, "\x00") == ""
}

func cstring(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}

// parseOctal decodes a NUL/space padded ASCII octal field. An empty field
// is zero.
func parseOctal(field string) (uint64, bool) {
	s := strings.TrimSpace(strings.Trim(field, "\x00"))
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(s, 8, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// normalize rewrites a leading "./" to "/". Other names are kept verbatim.
func normalize(name string) string {
	if strings.HasPrefix(name, "./") {
		return "/" + name[2:]
	}
	return name
}

func blocks(size uint64) uint64 {
	return (size + blockSize - 1) / blockSize * blockSize
}
