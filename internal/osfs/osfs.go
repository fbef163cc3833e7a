// Package osfs exposes the host filesystem as an absfs.FileSystem.
package osfs

import (
	"os"
	"time"

	"github.com/absfs/absfs"
)

// FileSystem forwards every call to the os package. Paths are used as given.
type FileSystem struct{}

// New returns the host filesystem.
func New() *FileSystem {
	return &FileSystem{}
}

var _ absfs.FileSystem = (*FileSystem)(nil)

// OpenFile opens name with the given flags, as os.OpenFile.
func (*FileSystem) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	return os.OpenFile(name, flag, perm) //nolint:gosec // paths come from the command line
}

// Open opens name for reading.
func (fs *FileSystem) Open(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

// Create creates or truncates name for reading and writing.
func (fs *FileSystem) Create(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666) //nolint:mnd
}

// Mkdir creates the directory name.
func (*FileSystem) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(name, perm)
}

// MkdirAll creates name along with any missing parents.
func (*FileSystem) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(name, perm)
}

// Remove removes the file or empty directory name.
func (*FileSystem) Remove(name string) error {
	return os.Remove(name)
}

// RemoveAll removes path and everything it contains.
func (*FileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Rename moves oldpath to newpath, replacing an existing file.
func (*FileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Stat returns the FileInfo of name, following symlinks.
func (*FileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// Chmod changes the mode of name.
func (*FileSystem) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(name, mode)
}

// Chtimes changes the access and modification times of name.
func (*FileSystem) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(name, atime, mtime)
}

// Chown changes the owner and group of name.
func (*FileSystem) Chown(name string, uid, gid int) error {
	return os.Chown(name, uid, gid)
}

// Truncate changes the size of name.
func (*FileSystem) Truncate(name string, size int64) error {
	return os.Truncate(name, size)
}

// Separator returns the host path separator.
func (*FileSystem) Separator() uint8 {
	return os.PathSeparator
}

// ListSeparator returns the host path list separator.
func (*FileSystem) ListSeparator() uint8 {
	return os.PathListSeparator
}

// Chdir changes the working directory of the process.
func (*FileSystem) Chdir(dir string) error {
	return os.Chdir(dir)
}

// Getwd returns the working directory of the process.
func (*FileSystem) Getwd() (string, error) {
	return os.Getwd()
}

// TempDir returns the host directory for temporary files.
func (*FileSystem) TempDir() string {
	return os.TempDir()
}
