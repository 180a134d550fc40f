package manager

import (
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
)

// ResourceOpener opens policy resources by absolute resource path
// ("/<namespace>/<file>.gwt.rpc"). A missing resource is reported with an
// error matching fs.ErrNotExist.
type ResourceOpener interface {
	Open(resourcePath string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to ResourceOpener.
type OpenerFunc func(resourcePath string) (io.ReadCloser, error)

// Open implements ResourceOpener.
func (f OpenerFunc) Open(resourcePath string) (io.ReadCloser, error) {
	return f(resourcePath)
}

// FSOpener serves resources from an fs.FS, treating the resource path as
// relative to the file system root.
type FSOpener struct {
	FS fs.FS
}

// Open implements ResourceOpener.
func (o FSOpener) Open(resourcePath string) (io.ReadCloser, error) {
	name := strings.TrimPrefix(path.Clean("/"+resourcePath), "/")
	if name == "" {
		name = "."
	}
	f, err := o.FS.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DirOpener serves resources from a directory on disk.
func DirOpener(dir string) FSOpener {
	return FSOpener{FS: os.DirFS(dir)}
}
