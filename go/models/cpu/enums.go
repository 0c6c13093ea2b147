package cpu

// MemError.Enum values
const (
	MEM_READ_UNMAPPED  = 19
	MEM_WRITE_UNMAPPED = 20
)

// page protections, bit compatible with models.Perm and unicorn's PROT_*
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
)
