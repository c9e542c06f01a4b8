package procfs

import (
	"io/fs"
	"syscall"
)

// ownerUID extracts the owning uid from a FileInfo's underlying
// syscall.Stat_t, as used by MyPids' uid filter.
func ownerUID(info fs.FileInfo) int {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return int(st.Uid)
	}
	return -1
}
