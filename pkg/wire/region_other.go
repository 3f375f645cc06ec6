//go:build !unix

package wire

// Platforms without mmap fall back to heap memory.
func mapAnon(n int) ([]byte, error) {
	return make([]byte, n), nil
}

func unmap([]byte) error { return nil }
