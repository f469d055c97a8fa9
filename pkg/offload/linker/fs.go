package linker

import "os"

// FS is the filesystem surface the linker needs. The default is backed by
// the os package; tests substitute it to drive verification behavior
// without real symlinks.
type FS interface {
	Lstat(name string) (os.FileInfo, error)
	Stat(name string) (os.FileInfo, error)
	Symlink(oldname, newname string) error
	Remove(name string) error
}

type osFS struct{}

func (osFS) Lstat(name string) (os.FileInfo, error) { return os.Lstat(name) }
func (osFS) Stat(name string) (os.FileInfo, error)  { return os.Stat(name) }
func (osFS) Symlink(oldname, newname string) error  { return os.Symlink(oldname, newname) }
func (osFS) Remove(name string) error               { return os.Remove(name) }
