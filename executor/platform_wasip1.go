//go:build wasip1

package executor

import "syscall"

// randomRead fills buf using the preview1 random_get import directly.
func randomRead(buf []byte) error {
	return syscall.RandomGet(buf)
}

// filetypeOf reads the WASI filetype tag wasip1's Stat_t already
// carries, populated by the runtime from the preview1 fd_filestat_get
// result it wraps.
func filetypeOf(st syscall.Stat_t) uint8 {
	return st.Filetype
}
