//go:build unix

package wire

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func mapAnon(n int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "wire: mmap %d bytes", n)
	}
	return mem, nil
}

func unmap(mem []byte) error {
	return errors.Wrap(unix.Munmap(mem), "wire: munmap")
}
