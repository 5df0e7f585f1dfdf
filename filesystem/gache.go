package filesystem

import (
	"io"
	"os"
)

// GacheFs adapts the volatile in-memory filesystem to the gache.FileSystem interface,
// so gache-backed slots never reach the disk.
type GacheFs struct{}

// OpenFile opens a file on the volatile backend.
func (GacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return Volatile().OpenFile(name, flag, perm)
}

// MkdirAll creates a directory on the volatile backend.
func (GacheFs) MkdirAll(path string, perm os.FileMode) error {
	return Volatile().MkdirAll(path, perm)
}
