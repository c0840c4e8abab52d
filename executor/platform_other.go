//go:build !wasip1

package executor

import (
	"crypto/rand"
	"syscall"
)

// randomRead stands in for the preview1 random_get import on a host
// GOOS, where package syscall has no RandomGet: crypto/rand.Read draws
// from the same OS entropy source any real wasip1 runtime would.
func randomRead(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}

// WASI preview1 filetype tags (§6 "Filesystem"), the subset
// dispatchable results ever produce.
const (
	filetypeRegularFile uint8 = 4
	filetypeDirectory   uint8 = 3
)

// filetypeOf derives the preview1 filetype tag from a POSIX mode bit,
// since a host Stat_t carries no such field of its own.
func filetypeOf(st syscall.Stat_t) uint8 {
	switch st.Mode & syscall.S_IFMT {
	case syscall.S_IFDIR:
		return filetypeDirectory
	default:
		return filetypeRegularFile
	}
}
