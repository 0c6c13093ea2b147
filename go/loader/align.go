package loader

import (
	"github.com/sereneos/initsys/go/models"
)

func alignDown(addr uint64) uint64 {
	return addr &^ (models.PageSize - 1)
}

// align rounds up to the next page. It wraps to 0 past the top of the
// address space, which Parse rejects.
func align(addr uint64) uint64 {
	return (addr + models.PageSize - 1) &^ (models.PageSize - 1)
}
