package fs

import (
	"context"
	"embed"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
)

//go:embed rootfs
var rootfs embed.FS

// FS serves images from an io/fs.FS tree.
type FS struct {
	fsys iofs.FS
}

// NewFS wraps fsys.
func NewFS(fsys iofs.FS) *FS {
	return &FS{fsys: fsys}
}

// Embedded returns the images built into the binary (bin/init and friends).
func Embedded() *FS {
	sub, err := iofs.Sub(rootfs, "rootfs")
	if err != nil {
		panic(fmt.Sprintf("fs: embedded rootfs: %v", err))
	}
	return NewFS(sub)
}

// Dir serves images from a host directory.
func Dir(root string) *FS {
	return NewFS(os.DirFS(root))
}

// Lookup implements FileSystem. Directories do not resolve.
func (f *FS) Lookup(_ context.Context, path string) (INode, error) {
	p := CleanPath(path)
	if p == "" {
		return nil, notExist(path)
	}
	info, err := iofs.Stat(f.fsys, p)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, notExist(path)
		}
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, notExist(path)
	}
	return &fsNode{fsys: f.fsys, path: p}, nil
}

// List returns every image path in the tree.
func (f *FS) List() ([]string, error) {
	var paths []string
	err := iofs.WalkDir(f.fsys, ".", func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

type fsNode struct {
	fsys iofs.FS
	path string
}

func (n *fsNode) ReadAll(context.Context) ([]byte, error) {
	data, err := iofs.ReadFile(n.fsys, n.path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", n.path, err)
	}
	return data, nil
}
