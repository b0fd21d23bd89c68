package symtab

// Stat identifies a file on disk by (device, inode), a cheaper cache key
// than a path when the same binary is bind-mounted or hardlinked into
// multiple containers.
//
// Grounded on iwm/src/ebpf/symtab/stat.rs.
type Stat struct {
	Dev   uint64
	Inode uint64
}
